package model

import "time"

// Account is the tracked debt balance row. Balance is whole currency units
// and never goes negative; every mutation bumps UpdatedAt with the value.
type Account struct {
	ID        string    `db:"id"`
	Balance   int64     `db:"balance"`
	Email     *string   `db:"email"` // nullable; notifier falls back to default_to
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
