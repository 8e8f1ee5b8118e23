package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/storage"
)

// Store is the sqlx-backed ledger store. Outside Atomically it runs every
// statement on the pool; inside, on the transaction.
type Store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

func New(db *sqlx.DB) *Store { return &Store{db: db, ext: db} }

var _ storage.Store = (*Store)(nil)

// Atomically begins a transaction and runs fn against a tx-bound view.
// Nested calls reuse the open transaction.
func (s *Store) Atomically(ctx context.Context, fn func(storage.Store) error) error {
	if _, ok := s.ext.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, ext: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// ---- accounts ----

func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	var a model.Account
	err := sqlx.GetContext(ctx, s.ext, &a, `
		SELECT id, balance, email, created_at, updated_at
		  FROM accounts
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func (s *Store) GetAccountForUpdate(ctx context.Context, id string) (model.Account, error) {
	var a model.Account
	err := sqlx.GetContext(ctx, s.ext, &a, `
		SELECT id, balance, email, created_at, updated_at
		  FROM accounts
		 WHERE id = ?
		   FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func (s *Store) UpdateBalance(ctx context.Context, id string, balance int64, ts time.Time) error {
	res, err := s.ext.ExecContext(ctx, `
		UPDATE accounts
		   SET balance = ?, updated_at = ?
		 WHERE id = ?
	`, balance, ts, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// the balance may legitimately be rewritten to the same value,
		// so re-check existence before concluding the row is gone
		if _, gerr := s.GetAccount(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, s.ext, &ids, `SELECT id FROM accounts ORDER BY id`); err != nil {
		return nil, err
	}
	return ids, nil
}

// ---- debt history ----

func (s *Store) InsertDebtHistory(ctx context.Context, accountID string, balance int64) error {
	_, err := s.ext.ExecContext(ctx, `
		INSERT INTO debt_history (account_id, balance, recorded_at)
		VALUES (?, ?, NOW())
	`, accountID, balance)
	return err
}

func (s *Store) ListDebtHistory(ctx context.Context, accountID string) ([]model.DebtHistoryEntry, error) {
	var rows []model.DebtHistoryEntry
	err := sqlx.SelectContext(ctx, s.ext, &rows, `
		SELECT id, account_id, balance, recorded_at
		  FROM debt_history
		 WHERE account_id = ?
		 ORDER BY recorded_at ASC, id ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListRecentDebtIDs(ctx context.Context, accountID string, limit int) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, s.ext, &ids, `
		SELECT id
		  FROM debt_history
		 WHERE account_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) DeleteDebtExcept(ctx context.Context, accountID string, keep []int64) (int64, error) {
	return s.deleteExcept(ctx, "debt_history", accountID, keep)
}

// ---- payment history ----

func (s *Store) InsertPaymentHistory(ctx context.Context, accountID string, amount int64) error {
	_, err := s.ext.ExecContext(ctx, `
		INSERT INTO payment_history (account_id, amount, paid_at)
		VALUES (?, ?, NOW())
	`, accountID, amount)
	return err
}

func (s *Store) ListPaymentHistory(ctx context.Context, accountID string) ([]model.PaymentHistoryEntry, error) {
	var rows []model.PaymentHistoryEntry
	err := sqlx.SelectContext(ctx, s.ext, &rows, `
		SELECT id, account_id, amount, paid_at
		  FROM payment_history
		 WHERE account_id = ?
		 ORDER BY paid_at DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListRecentPaymentIDs(ctx context.Context, accountID string, limit int) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, s.ext, &ids, `
		SELECT id
		  FROM payment_history
		 WHERE account_id = ?
		 ORDER BY paid_at DESC, id DESC
		 LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) DeletePaymentExcept(ctx context.Context, accountID string, keep []int64) (int64, error) {
	return s.deleteExcept(ctx, "payment_history", accountID, keep)
}

func (s *Store) deleteExcept(ctx context.Context, table, accountID string, keep []int64) (int64, error) {
	var (
		query string
		args  []any
		err   error
	)
	if len(keep) == 0 {
		query = fmt.Sprintf(`DELETE FROM %s WHERE account_id = ?`, table)
		args = []any{accountID}
	} else {
		query, args, err = sqlx.In(
			fmt.Sprintf(`DELETE FROM %s WHERE account_id = ? AND id NOT IN (?)`, table),
			accountID, keep,
		)
		if err != nil {
			return 0, err
		}
		query = s.db.Rebind(query)
	}

	res, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// ---- outbox ----

// InsertOutbox adds an event row. The Debezium outbox SMT picks it up and
// publishes to Kafka based on the topic column.
func (s *Store) InsertOutbox(ctx context.Context, aggregate, aggregateID, topic string, payload []byte) error {
	_, err := s.ext.ExecContext(ctx, `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`, aggregate, aggregateID, topic, payload)
	return err
}
