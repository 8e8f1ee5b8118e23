package notifier

import (
	"fmt"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/util"
)

// ComposeWarning builds the pre-increment notice. The balance passed in is
// the snapshot taken at tick time; the text may be stale if a payment lands
// before the increment fires.
func ComposeWarning(accountID, to string, snapshot, increment int64, lead time.Duration) model.Envelope {
	projected := snapshot + increment
	return model.Envelope{
		ID:        util.NewID(),
		AccountID: accountID,
		To:        to,
		Subject:   "Notice: upcoming debt increment",
		Body: fmt.Sprintf(
			"Your balance will increase by %d units in %s. The new balance will be %d units.",
			increment, lead, projected,
		),
	}
}

// ComposeBand builds the post-increment severity notice. Callers must not
// pass BandNone.
func ComposeBand(accountID, to string, band model.Band, balance int64) model.Envelope {
	env := model.Envelope{
		ID:        util.NewID(),
		AccountID: accountID,
		Band:      band,
		To:        to,
	}

	switch band {
	case model.BandPending:
		env.Subject = "Outstanding balance reminder"
		env.Body = fmt.Sprintf("Your outstanding balance is %d units. Please arrange a payment.", balance)
	case model.BandElevated:
		env.Subject = "Outstanding balance is elevated"
		env.Body = fmt.Sprintf("Your outstanding balance has reached %d units. Prompt payment is advised.", balance)
	case model.BandCritical:
		env.Subject = "Outstanding balance is critical"
		env.Body = fmt.Sprintf("Your outstanding balance is %d units and past the critical threshold. Please settle immediately.", balance)
	}
	return env
}

// ComposePayment builds the payment confirmation.
func ComposePayment(accountID, to string, amount, newBalance int64) model.Envelope {
	return model.Envelope{
		ID:        util.NewID(),
		AccountID: accountID,
		To:        to,
		Subject:   "Payment received",
		Body: fmt.Sprintf(
			"A payment of %d units was applied. Your new balance is %d units.",
			amount, newBalance,
		),
	}
}
