package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IncrementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "debt_increments_total",
			Help: "Scheduled balance increments applied",
		},
	)

	WarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "debt_warnings_total",
			Help: "Pre-increment warnings issued",
		},
	)

	PaymentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "debt_payments_total",
			Help: "Payments applied to tracked balances",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debt_notifications_total",
			Help: "Band notifications issued, by band",
		},
		[]string{"band"}, // pending|elevated|critical|payment|warning
	)

	HistoryTrimmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debt_history_trimmed_total",
			Help: "History rows deleted by retention trimming, by table",
		},
		[]string{"table"}, // debt|payment
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "debt_deliveries_total",
			Help: "Notification delivery results, by status",
		},
		[]string{"status"}, // sent|failed
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		IncrementsTotal,
		WarningsTotal,
		PaymentsTotal,
		NotificationsTotal,
		HistoryTrimmedTotal,
		DeliveriesTotal,
	)
}
