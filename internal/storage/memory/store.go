// Package memory is an in-memory ledger store for tests and dev mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/storage"
)

type Store struct {
	mu   sync.Mutex
	txmu sync.Mutex // serializes Atomically blocks

	accounts map[string]model.Account
	debt     map[string][]model.DebtHistoryEntry
	payments map[string][]model.PaymentHistoryEntry
	outbox   []model.OutboxEvent

	debtSeq    int64
	paymentSeq int64
}

func New() *Store {
	return &Store{
		accounts: make(map[string]model.Account),
		debt:     make(map[string][]model.DebtHistoryEntry),
		payments: make(map[string][]model.PaymentHistoryEntry),
	}
}

var _ storage.Store = (*Store)(nil)

// PutAccount seeds or replaces an account row. Test/dev helper, not part
// of the storage contract.
func (s *Store) PutAccount(a model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	s.accounts[a.ID] = a
}

// Outbox returns a copy of the accumulated outbox rows.
func (s *Store) Outbox() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxEvent, len(s.outbox))
	copy(out, s.outbox)
	return out
}

func (s *Store) Atomically(_ context.Context, fn func(storage.Store) error) error {
	s.txmu.Lock()
	defer s.txmu.Unlock()
	return fn(s)
}

// ---- accounts ----

func (s *Store) GetAccount(_ context.Context, id string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, storage.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetAccountForUpdate(ctx context.Context, id string) (model.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *Store) UpdateBalance(_ context.Context, id string, balance int64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.Balance = balance
	a.UpdatedAt = ts
	s.accounts[id] = a
	return nil
}

func (s *Store) ListAccountIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// ---- debt history ----

func (s *Store) InsertDebtHistory(_ context.Context, accountID string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debtSeq++
	s.debt[accountID] = append(s.debt[accountID], model.DebtHistoryEntry{
		ID:         s.debtSeq,
		AccountID:  accountID,
		Balance:    balance,
		RecordedAt: time.Now(),
	})
	return nil
}

func (s *Store) ListDebtHistory(_ context.Context, accountID string) ([]model.DebtHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.debt[accountID]
	out := make([]model.DebtHistoryEntry, len(rows))
	copy(out, rows) // insertion order is chronological ascending
	return out, nil
}

func (s *Store) ListRecentDebtIDs(_ context.Context, accountID string, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.debt[accountID]
	ids := make([]int64, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(ids) < limit; i-- {
		ids = append(ids, rows[i].ID)
	}
	return ids, nil
}

func (s *Store) DeleteDebtExcept(_ context.Context, accountID string, keep []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := toSet(keep)
	rows := s.debt[accountID]
	kept := rows[:0:0]
	var deleted int64
	for _, r := range rows {
		if keepSet[r.ID] {
			kept = append(kept, r)
		} else {
			deleted++
		}
	}
	s.debt[accountID] = kept
	return deleted, nil
}

// ---- payment history ----

func (s *Store) InsertPaymentHistory(_ context.Context, accountID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentSeq++
	s.payments[accountID] = append(s.payments[accountID], model.PaymentHistoryEntry{
		ID:        s.paymentSeq,
		AccountID: accountID,
		Amount:    amount,
		PaidAt:    time.Now(),
	})
	return nil
}

func (s *Store) ListPaymentHistory(_ context.Context, accountID string) ([]model.PaymentHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.payments[accountID]
	out := make([]model.PaymentHistoryEntry, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- { // most recent first
		out = append(out, rows[i])
	}
	return out, nil
}

func (s *Store) ListRecentPaymentIDs(_ context.Context, accountID string, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.payments[accountID]
	ids := make([]int64, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(ids) < limit; i-- {
		ids = append(ids, rows[i].ID)
	}
	return ids, nil
}

func (s *Store) DeletePaymentExcept(_ context.Context, accountID string, keep []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keepSet := toSet(keep)
	rows := s.payments[accountID]
	kept := rows[:0:0]
	var deleted int64
	for _, r := range rows {
		if keepSet[r.ID] {
			kept = append(kept, r)
		} else {
			deleted++
		}
	}
	s.payments[accountID] = kept
	return deleted, nil
}

// ---- outbox ----

func (s *Store) InsertOutbox(_ context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, model.OutboxEvent{
		ID:          int64(len(s.outbox) + 1),
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		Topic:       topic,
		Payload:     payload,
		CreatedAt:   time.Now(),
	})
	return nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
