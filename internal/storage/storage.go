// Package storage defines the ledger store contract the services write
// through. The mysql package is the durable implementation; the memory
// package backs tests and dev mode.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
)

var ErrNotFound = errors.New("account not found")

type Accounts interface {
	GetAccount(ctx context.Context, id string) (model.Account, error)

	// GetAccountForUpdate locks the row until the surrounding Atomically
	// block commits. Only meaningful inside Atomically.
	GetAccountForUpdate(ctx context.Context, id string) (model.Account, error)

	// UpdateBalance writes the balance and timestamp as one mutation.
	UpdateBalance(ctx context.Context, id string, balance int64, ts time.Time) error

	ListAccountIDs(ctx context.Context) ([]string, error)
}

type DebtHistory interface {
	InsertDebtHistory(ctx context.Context, accountID string, balance int64) error

	// ListDebtHistory returns entries in chronological ascending order.
	ListDebtHistory(ctx context.Context, accountID string) ([]model.DebtHistoryEntry, error)

	ListRecentDebtIDs(ctx context.Context, accountID string, limit int) ([]int64, error)

	// DeleteDebtExcept removes every row for the account whose id is not in
	// keep, and reports how many rows went away.
	DeleteDebtExcept(ctx context.Context, accountID string, keep []int64) (int64, error)
}

type PaymentHistory interface {
	InsertPaymentHistory(ctx context.Context, accountID string, amount int64) error

	// ListPaymentHistory returns entries most recent first.
	ListPaymentHistory(ctx context.Context, accountID string) ([]model.PaymentHistoryEntry, error)

	ListRecentPaymentIDs(ctx context.Context, accountID string, limit int) ([]int64, error)

	DeletePaymentExcept(ctx context.Context, accountID string, keep []int64) (int64, error)
}

type Outbox interface {
	InsertOutbox(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error
}

// Store is the full ledger surface. Atomically runs fn against a
// transactional view; every store call made through that view commits or
// rolls back as one unit.
type Store interface {
	Accounts
	DebtHistory
	PaymentHistory
	Outbox

	Atomically(ctx context.Context, fn func(Store) error) error
}

// Clients resolves API callers; used by the auth middleware only.
type Clients interface {
	GetClientByAPIKey(ctx context.Context, apiKey string) (*model.APIClient, error)
}
