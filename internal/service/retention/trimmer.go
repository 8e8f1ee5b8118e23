// Package retention enforces the bounded history policy: after an insert,
// only the N most recent rows per account survive.
package retention

import (
	"context"
	"fmt"

	"github.com/jpanzo/debt-tracker/internal/metrics"
	"github.com/jpanzo/debt-tracker/internal/storage"
)

type Trimmer struct {
	debtKeep    int
	paymentKeep int
}

func NewTrimmer(debtKeep, paymentKeep int) *Trimmer {
	if debtKeep <= 0 {
		debtKeep = 20
	}
	if paymentKeep <= 0 {
		paymentKeep = 15
	}
	return &Trimmer{debtKeep: debtKeep, paymentKeep: paymentKeep}
}

func (t *Trimmer) DebtKeep() int    { return t.debtKeep }
func (t *Trimmer) PaymentKeep() int { return t.paymentKeep }

// TrimDebtHistory deletes all but the debtKeep most recent debt rows for
// the account. Safe to call with no prior rows, and idempotent: a second
// call with the same keep count deletes nothing.
func (t *Trimmer) TrimDebtHistory(ctx context.Context, s storage.DebtHistory, accountID string) error {
	keep, err := s.ListRecentDebtIDs(ctx, accountID, t.debtKeep)
	if err != nil {
		return fmt.Errorf("list recent debt ids: %w", err)
	}
	if len(keep) == 0 {
		return nil
	}

	deleted, err := s.DeleteDebtExcept(ctx, accountID, keep)
	if err != nil {
		return fmt.Errorf("delete debt history: %w", err)
	}
	metrics.HistoryTrimmedTotal.WithLabelValues("debt").Add(float64(deleted))
	return nil
}

// TrimPaymentHistory is the payment-table twin of TrimDebtHistory.
func (t *Trimmer) TrimPaymentHistory(ctx context.Context, s storage.PaymentHistory, accountID string) error {
	keep, err := s.ListRecentPaymentIDs(ctx, accountID, t.paymentKeep)
	if err != nil {
		return fmt.Errorf("list recent payment ids: %w", err)
	}
	if len(keep) == 0 {
		return nil
	}

	deleted, err := s.DeletePaymentExcept(ctx, accountID, keep)
	if err != nil {
		return fmt.Errorf("delete payment history: %w", err)
	}
	metrics.HistoryTrimmedTotal.WithLabelValues("payment").Add(float64(deleted))
	return nil
}
