// Package escalation drives time-based balance growth: on a fixed cadence
// every tracked account gets a pre-increment warning and, a cadence later,
// a re-verified increment.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpanzo/debt-tracker/internal/metrics"
	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/notifier"
	"github.com/jpanzo/debt-tracker/internal/service/retention"
	"github.com/jpanzo/debt-tracker/internal/storage"
	"github.com/jpanzo/debt-tracker/internal/util"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("scheduler already running")

type Config struct {
	Cadence     time.Duration // full cycle length, default 5m
	WarningLead time.Duration // how long before the increment the warning fires, default 3m
	Increment   int64         // units added per cycle, default 10
	DefaultTo   string        // fallback recipient
}

func (c *Config) applyDefaults() {
	if c.Cadence <= 0 {
		c.Cadence = 5 * time.Minute
	}
	if c.WarningLead <= 0 {
		c.WarningLead = 3 * time.Minute
	}
	if c.Increment <= 0 {
		c.Increment = 10
	}
}

// Scheduler owns the in-memory timer state. Pending timers do not survive
// a restart; the next tick recomputes everything from the store.
type Scheduler struct {
	store      storage.Store
	trim       *retention.Trimmer
	notify     notifier.Notifier
	locks      *util.KeyMutex
	thresholds model.BandThresholds
	cfg        Config
	log        *zap.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	timers   map[int64]*time.Timer
	timerSeq int64
	wg       sync.WaitGroup
}

// New constructs the scheduler. locks must be shared with the balance
// service so increments and payments on one account serialize.
func New(
	store storage.Store,
	trim *retention.Trimmer,
	notify notifier.Notifier,
	locks *util.KeyMutex,
	thresholds model.BandThresholds,
	cfg Config,
	log *zap.Logger,
) *Scheduler {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		store:      store,
		trim:       trim,
		notify:     notify,
		locks:      locks,
		thresholds: thresholds,
		cfg:        cfg,
		log:        log,
		timers:     make(map[int64]*time.Timer),
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is an
// error; Stop first, which also cancels all pending per-account timers, so
// a restart never duplicates cycles.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.log.Info("escalation scheduler started",
		zap.Duration("cadence", s.cfg.Cadence),
		zap.Duration("warning_lead", s.cfg.WarningLead),
		zap.Int64("increment", s.cfg.Increment),
	)
	return nil
}

// Stop halts the tick loop and cancels every pending warning and increment
// timer. In-flight actions finish; nothing new fires.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("escalation scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle snapshots every tracked account and arms its two timers. A
// failing account is logged and skipped; the rest of the tick proceeds.
func (s *Scheduler) runCycle(ctx context.Context) {
	ids, err := s.store.ListAccountIDs(ctx)
	if err != nil {
		s.log.Error("list tracked accounts", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		s.log.Debug("no tracked accounts")
		return
	}

	warnDelay := s.cfg.Cadence - s.cfg.WarningLead
	if warnDelay < 0 {
		warnDelay = 0
	}

	for _, id := range ids {
		a, err := s.store.GetAccount(ctx, id)
		if err != nil {
			s.log.Error("snapshot account", zap.String("account_id", id), zap.Error(err))
			continue
		}

		// the warning deliberately uses this tick-time snapshot; a payment
		// landing before the increment fires makes the text stale, which
		// is accepted
		snapshot := a.Balance
		to := s.recipient(a.Email)

		s.schedule(warnDelay, func() {
			s.sendWarning(ctx, id, to, snapshot)
		})
		s.schedule(s.cfg.Cadence, func() {
			s.applyIncrement(ctx, id)
		})
	}
}

// schedule arms a cancellable timer tracked in the registry. No-op once
// the scheduler is stopped.
func (s *Scheduler) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.timerSeq++
	key := s.timerSeq
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

func (s *Scheduler) sendWarning(ctx context.Context, accountID, to string, snapshot int64) {
	env := notifier.ComposeWarning(accountID, to, snapshot, s.cfg.Increment, s.cfg.WarningLead)
	s.notify.Send(ctx, env)
	metrics.WarningsTotal.Inc()
	metrics.NotificationsTotal.WithLabelValues("warning").Inc()
}

// applyIncrement re-reads the balance at fire time so an intervening
// payment is respected rather than overwritten, then writes the new
// balance, appends history, trims, and notifies by band.
func (s *Scheduler) applyIncrement(ctx context.Context, accountID string) {
	s.locks.Lock(accountID)
	defer s.locks.Unlock(accountID)

	var (
		newBalance int64
		email      *string
	)
	err := s.store.Atomically(ctx, func(tx storage.Store) error {
		a, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("re-read balance: %w", err)
		}
		newBalance = a.Balance + s.cfg.Increment
		email = a.Email
		if err := tx.UpdateBalance(ctx, accountID, newBalance, time.Now()); err != nil {
			return fmt.Errorf("write balance: %w", err)
		}
		if err := tx.InsertDebtHistory(ctx, accountID, newBalance); err != nil {
			return fmt.Errorf("insert debt history: %w", err)
		}
		return s.trim.TrimDebtHistory(ctx, tx, accountID)
	})
	if err != nil {
		s.log.Error("increment cycle", zap.String("account_id", accountID), zap.Error(err))
		return
	}

	metrics.IncrementsTotal.Inc()
	s.log.Info("balance incremented",
		zap.String("account_id", accountID),
		zap.Int64("balance", newBalance),
	)

	band := model.ClassifyBand(newBalance, s.thresholds)
	if band == model.BandNone {
		return
	}

	env := notifier.ComposeBand(accountID, s.recipient(email), band, newBalance)
	s.notify.Send(ctx, env)
	metrics.NotificationsTotal.WithLabelValues(band.String()).Inc()
}

func (s *Scheduler) recipient(email *string) string {
	if email != nil && *email != "" {
		return *email
	}
	return s.cfg.DefaultTo
}
