package model

// Envelope is the notification payload published to Kafka through the
// outbox table (Debezium outbox SMT routes on the topic column).
type Envelope struct {
	ID        string `json:"id"` // message ULID
	AccountID string `json:"account_id"`
	Band      Band   `json:"band,omitempty"` // empty for warnings and payment confirmations
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}
