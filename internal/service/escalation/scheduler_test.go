package escalation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/notifier"
	"github.com/jpanzo/debt-tracker/internal/service/retention"
	"github.com/jpanzo/debt-tracker/internal/storage/memory"
	"github.com/jpanzo/debt-tracker/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []model.Envelope
}

func (c *captureNotifier) Send(_ context.Context, env model.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, env)
}

func (c *captureNotifier) envelopes() []model.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Envelope, len(c.sent))
	copy(out, c.sent)
	return out
}

var testThresholds = model.BandThresholds{Pending: 20, Elevated: 40, Critical: 50}

func newTestScheduler(store *memory.Store, cfg Config) (*Scheduler, *captureNotifier) {
	capture := &captureNotifier{}
	s := New(
		store,
		retention.NewTrimmer(20, 15),
		capture,
		util.NewKeyMutex(),
		testThresholds,
		cfg,
		zap.NewNop(),
	)
	return s, capture
}

func TestApplyIncrement(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 5})
	s, capture := newTestScheduler(store, Config{Increment: 10})

	s.applyIncrement(context.Background(), "acc-1")

	a, err := store.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15), a.Balance)

	rows, err := store.ListDebtHistory(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(15), rows[0].Balance)

	// 15 is below the pending threshold: no notification
	assert.Empty(t, capture.envelopes())
}

func TestApplyIncrementCrossesCritical(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 45})
	s, capture := newTestScheduler(store, Config{Increment: 10})

	s.applyIncrement(context.Background(), "acc-1")

	a, err := store.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(55), a.Balance)

	sent := capture.envelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, model.BandCritical, sent[0].Band)
	assert.Contains(t, sent[0].Body, "55 units")
}

func TestApplyIncrementBandBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		start   int64
		band    model.Band // expected band after +10, BandNone means no envelope
	}{
		{"stays none", 10, model.BandNone},
		{"lands on pending upper bound", 30, model.BandPending},
		{"enters elevated", 31, model.BandElevated},
		{"lands on critical lower bound", 40, model.BandElevated},
		{"enters critical", 41, model.BandCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			store.PutAccount(model.Account{ID: "acc-1", Balance: tc.start})
			s, capture := newTestScheduler(store, Config{Increment: 10})

			s.applyIncrement(context.Background(), "acc-1")

			sent := capture.envelopes()
			if tc.band == model.BandNone {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, tc.band, sent[0].Band)
		})
	}
}

func TestApplyIncrementRereadsBalance(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 100})
	s, _ := newTestScheduler(store, Config{Increment: 10})

	// a payment lands between the tick-time snapshot and the increment
	// firing; the increment must build on the paid-down balance
	require.NoError(t, store.UpdateBalance(context.Background(), "acc-1", 40, time.Now()))

	s.applyIncrement(context.Background(), "acc-1")

	a, err := store.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), a.Balance)
}

func TestApplyIncrementRetainsBoundedHistory(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 0})
	s, _ := newTestScheduler(store, Config{Increment: 10})

	for i := 0; i < 25; i++ {
		s.applyIncrement(context.Background(), "acc-1")
	}

	rows, err := store.ListDebtHistory(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, rows, 20)
	// the five oldest entries (10..50) were trimmed away
	assert.Equal(t, int64(60), rows[0].Balance)
	assert.Equal(t, int64(250), rows[19].Balance)
}

func TestApplyIncrementUnknownAccount(t *testing.T) {
	store := memory.New()
	s, capture := newTestScheduler(store, Config{Increment: 10})

	// must not panic and must not notify
	s.applyIncrement(context.Background(), "acc-ghost")
	assert.Empty(t, capture.envelopes())
}

func TestSendWarningUsesSnapshot(t *testing.T) {
	store := memory.New()
	s, capture := newTestScheduler(store, Config{Increment: 10, WarningLead: 3 * time.Minute})

	s.sendWarning(context.Background(), "acc-1", "debtor@example.com", 35)

	sent := capture.envelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, "acc-1", sent[0].AccountID)
	assert.Equal(t, "debtor@example.com", sent[0].To)
	assert.True(t, strings.Contains(sent[0].Body, "45 units"), "projects snapshot plus increment: %s", sent[0].Body)
}

func TestStartTwice(t *testing.T) {
	store := memory.New()
	s, _ := newTestScheduler(store, Config{Cadence: time.Hour, WarningLead: time.Minute})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
}

func TestStopIsIdempotent(t *testing.T) {
	store := memory.New()
	s, _ := newTestScheduler(store, Config{Cadence: time.Hour, WarningLead: time.Minute})

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()

	// a stopped scheduler can be started again
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestSchedulerLifecycle(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 0})
	s, capture := newTestScheduler(store, Config{
		Cadence:     20 * time.Millisecond,
		WarningLead: 15 * time.Millisecond,
		Increment:   10,
	})

	require.NoError(t, s.Start(context.Background()))

	// at least one full warn+increment cycle completes
	assert.Eventually(t, func() bool {
		a, err := store.GetAccount(context.Background(), "acc-1")
		return err == nil && a.Balance >= 10 && len(capture.envelopes()) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	s.Stop()

	// let any callback that fired just before Stop finish
	time.Sleep(30 * time.Millisecond)

	// pending timers were cancelled: the balance stops moving
	a, err := store.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	settled := a.Balance

	time.Sleep(60 * time.Millisecond)

	a, err = store.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, settled, a.Balance)
}

func TestScheduleAfterStopIsNoop(t *testing.T) {
	store := memory.New()
	s, _ := newTestScheduler(store, Config{Cadence: time.Hour})

	fired := make(chan struct{}, 1)
	s.schedule(time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
		t.Fatal("timer armed on a stopped scheduler")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	assert.Equal(t, 5*time.Minute, cfg.Cadence)
	assert.Equal(t, 3*time.Minute, cfg.WarningLead)
	assert.Equal(t, int64(10), cfg.Increment)
}

var _ notifier.Notifier = (*captureNotifier)(nil)
