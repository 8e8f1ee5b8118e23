package notifier

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jpanzo/debt-tracker/internal/model"
	"go.uber.org/zap"
)

var (
	ErrNoHealthy = fmt.Errorf("no healthy providers")
	ErrNoAcquire = fmt.Errorf("provider not acquired")
)

// Relay delivers envelopes over HTTP mail-relay providers with round-robin
// selection and bounded retries.
type Relay struct {
	providers   []Provider
	from        string
	maxAttempts int
	rr          atomic.Uint64
	log         *zap.Logger
}

func NewRelay(provs []Provider, from string, maxAttempts int, log *zap.Logger) *Relay {
	if maxAttempts < 1 {
		maxAttempts = 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{providers: provs, from: from, maxAttempts: maxAttempts, log: log}
}

var _ Notifier = (*Relay)(nil)

func (r *Relay) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}
	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := r.rr.Add(1)
	return healthy[int((x-1)%uint64(len(healthy)))], nil
}

// Dispatch attempts delivery and reports which provider took it. Used by
// the notifier worker, which records the outcome itself.
func (r *Relay) Dispatch(ctx context.Context, env model.Envelope) (string, error) {
	var last error
	for i := 0; i < r.maxAttempts; i++ {
		p, err := r.selectProvider()
		if err != nil {
			last = err
			continue
		}
		if !p.Acquire() {
			last = ErrNoAcquire
			continue
		}
		if err := p.Send(ctx, r.from, env); err != nil {
			last = err
			continue
		}
		return p.Name(), nil
	}
	if last == nil {
		last = fmt.Errorf("dispatch failed")
	}
	return "", last
}

// Send is the fire-and-forget path: a failed delivery is logged and
// swallowed, never surfaced to the caller.
func (r *Relay) Send(ctx context.Context, env model.Envelope) {
	if _, err := r.Dispatch(ctx, env); err != nil {
		r.log.Warn("notification delivery failed",
			zap.String("id", env.ID),
			zap.String("account_id", env.AccountID),
			zap.String("to", env.To),
			zap.Error(err),
		)
	}
}
