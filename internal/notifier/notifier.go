// Package notifier decides nothing: it delivers the messages the services
// hand it. Delivery is fire-and-forget; failures are logged and never
// reach the caller.
package notifier

import (
	"context"

	"github.com/jpanzo/debt-tracker/internal/model"
)

type Notifier interface {
	Send(ctx context.Context, env model.Envelope)
}
