// Package balance holds the synchronous operations over a tracked debt:
// reads, payments, history queries, and the recent-update probe.
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpanzo/debt-tracker/internal/metrics"
	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/notifier"
	"github.com/jpanzo/debt-tracker/internal/service/retention"
	"github.com/jpanzo/debt-tracker/internal/storage"
	"github.com/jpanzo/debt-tracker/internal/util"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount       = errors.New("payment amount below minimum")
	ErrInsufficientBalance = errors.New("payment amount exceeds balance")
)

type Service struct {
	store  storage.Store
	trim   *retention.Trimmer
	notify notifier.Notifier
	locks  *util.KeyMutex

	minPayment   int64
	recentWindow time.Duration
	defaultTo    string

	log *zap.Logger
}

// New constructs the balance service. locks must be the same KeyMutex the
// escalation scheduler uses, so payments and increments for one account
// never interleave.
func New(
	store storage.Store,
	trim *retention.Trimmer,
	notify notifier.Notifier,
	locks *util.KeyMutex,
	minPayment int64,
	recentWindow time.Duration,
	defaultTo string,
	log *zap.Logger,
) *Service {
	if minPayment <= 0 {
		minPayment = 10
	}
	if recentWindow <= 0 {
		recentWindow = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:        store,
		trim:         trim,
		notify:       notify,
		locks:        locks,
		minPayment:   minPayment,
		recentWindow: recentWindow,
		defaultTo:    defaultTo,
		log:          log,
	}
}

func (s *Service) GetBalance(ctx context.Context, accountID string) (int64, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// ApplyPayment subtracts amount from the account balance. The balance
// write is the source of truth: once it commits, bookkeeping failures
// (history rows, trimming) are logged and the payment still succeeds.
func (s *Service) ApplyPayment(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount < s.minPayment {
		return 0, ErrInvalidAmount
	}

	s.locks.Lock(accountID)
	defer s.locks.Unlock(accountID)

	var (
		newBalance int64
		email      *string
	)
	err := s.store.Atomically(ctx, func(tx storage.Store) error {
		a, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if amount > a.Balance {
			return ErrInsufficientBalance
		}

		newBalance = a.Balance - amount
		email = a.Email
		return tx.UpdateBalance(ctx, accountID, newBalance, time.Now())
	})
	if err != nil {
		return 0, err
	}

	metrics.PaymentsTotal.Inc()

	// payments feed the debt history too; each insert+trim pair is one tx
	if err := s.store.Atomically(ctx, func(tx storage.Store) error {
		if err := tx.InsertDebtHistory(ctx, accountID, newBalance); err != nil {
			return fmt.Errorf("insert debt history: %w", err)
		}
		return s.trim.TrimDebtHistory(ctx, tx, accountID)
	}); err != nil {
		s.log.Warn("payment bookkeeping (debt history)", zap.String("account_id", accountID), zap.Error(err))
	}

	if err := s.store.Atomically(ctx, func(tx storage.Store) error {
		if err := tx.InsertPaymentHistory(ctx, accountID, amount); err != nil {
			return fmt.Errorf("insert payment history: %w", err)
		}
		return s.trim.TrimPaymentHistory(ctx, tx, accountID)
	}); err != nil {
		s.log.Warn("payment bookkeeping (payment history)", zap.String("account_id", accountID), zap.Error(err))
	}

	env := notifier.ComposePayment(accountID, s.recipient(email), amount, newBalance)
	s.notify.Send(ctx, env)
	metrics.NotificationsTotal.WithLabelValues("payment").Inc()

	return newBalance, nil
}

// GetDebtHistory returns the retained balance audit trail, oldest first.
func (s *Service) GetDebtHistory(ctx context.Context, accountID string) ([]model.DebtHistoryEntry, error) {
	return s.store.ListDebtHistory(ctx, accountID)
}

// GetPaymentHistory returns the retained payments, most recent first.
func (s *Service) GetPaymentHistory(ctx context.Context, accountID string) ([]model.PaymentHistoryEntry, error) {
	return s.store.ListPaymentHistory(ctx, accountID)
}

// WasRecentlyIncremented reports whether the balance changed within the
// configured window. Payments bump the same timestamp, so a true result
// means "something just changed", not specifically an increment.
func (s *Service) WasRecentlyIncremented(ctx context.Context, accountID string) (bool, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return time.Since(a.UpdatedAt) <= s.recentWindow, nil
}

func (s *Service) recipient(email *string) string {
	if email != nil && *email != "" {
		return *email
	}
	return s.defaultTo
}
