package model

import "time"

type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) Valid() bool {
	return s == DeliverySent || s == DeliveryFailed
}

// NotificationRecord is the delivery log row kept in ClickHouse.
type NotificationRecord struct {
	ID        string         `db:"id"`
	AccountID string         `db:"account_id"`
	Band      string         `db:"band"`
	To        string         `db:"to"`
	Subject   string         `db:"subject"`
	Status    DeliveryStatus `db:"status"`
	Provider  string         `db:"provider"`
	CreatedAt time.Time      `db:"created_at"`
}
