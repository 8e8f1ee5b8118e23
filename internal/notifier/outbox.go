package notifier

import (
	"context"
	"encoding/json"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/storage"
	"go.uber.org/zap"
)

// OutboxNotifier persists the envelope as an outbox row instead of
// delivering inline. The Debezium outbox pipeline publishes it to Kafka
// and the notifier worker handles actual delivery, so a pending message
// survives a process restart.
type OutboxNotifier struct {
	store storage.Outbox
	topic string
	log   *zap.Logger
}

func NewOutboxNotifier(store storage.Outbox, topic string, log *zap.Logger) *OutboxNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxNotifier{store: store, topic: topic, log: log}
}

var _ Notifier = (*OutboxNotifier)(nil)

func (n *OutboxNotifier) Send(ctx context.Context, env model.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		n.log.Warn("marshal notification envelope", zap.String("id", env.ID), zap.Error(err))
		return
	}

	if err := n.store.InsertOutbox(ctx, "notification", env.ID, n.topic, payload); err != nil {
		n.log.Warn("enqueue notification",
			zap.String("id", env.ID),
			zap.String("account_id", env.AccountID),
			zap.Error(err),
		)
	}
}
