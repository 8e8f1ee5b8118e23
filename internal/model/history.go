package model

import "time"

// DebtHistoryEntry is an immutable audit record of a balance value.
// Written on every increment and on every payment.
type DebtHistoryEntry struct {
	ID         int64     `db:"id"`
	AccountID  string    `db:"account_id"`
	Balance    int64     `db:"balance"`
	RecordedAt time.Time `db:"recorded_at"`
}

// PaymentHistoryEntry is an immutable audit record of one payment.
type PaymentHistoryEntry struct {
	ID        int64     `db:"id"`
	AccountID string    `db:"account_id"`
	Amount    int64     `db:"amount"`
	PaidAt    time.Time `db:"paid_at"`
}
