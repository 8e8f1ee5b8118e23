package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jpanzo/debt-tracker/internal/kafka"
	"github.com/jpanzo/debt-tracker/internal/metrics"
	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/notifier"
	"github.com/jpanzo/debt-tracker/internal/storage/clickhouse"
)

// NotifierWorker:
// - fetches notification envelopes from Kafka (published via the outbox),
// - delivers them through the mail relay,
// - batches delivery results into the ClickHouse log.
type NotifierWorker struct {
	// Dependencies
	Consumer *kafka.Consumer
	Relay    *notifier.Relay
	Log      clickhouse.NotificationsRepo

	// Behavior
	Workers   int           // goroutines delivering envelopes
	BatchSize int           // max buffered log rows per flush
	BatchWait time.Duration // max time to wait before flush
}

// NewNotifierWorker builds a worker with sane defaults.
func NewNotifierWorker(consumer *kafka.Consumer, relay *notifier.Relay, chLog clickhouse.NotificationsRepo) *NotifierWorker {
	return &NotifierWorker{
		Consumer:  consumer,
		Relay:     relay,
		Log:       chLog,
		Workers:   16,
		BatchSize: 100,
		BatchWait: time.Second,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *NotifierWorker) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 16
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 100
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}

	// delivery results → batch log writer
	results := make(chan model.NotificationRecord, w.BatchSize*2)
	defer close(results)

	go w.runLogWriter(ctx, results)

	// fetch loop → fan-out to deliverers
	msgCh := make(chan kafka.Message, w.Workers*2)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := w.Consumer.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("[notifier] kafka fetch err: %v", err)
					time.Sleep(200 * time.Millisecond)
					continue
				}
				msgCh <- m
			}
		}
	}()

	for i := 0; i < w.Workers; i++ {
		go w.runDeliverer(ctx, msgCh, results)
	}

	<-ctx.Done()
	return nil
}

func (w *NotifierWorker) runDeliverer(ctx context.Context, in <-chan kafka.Message, out chan<- model.NotificationRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.deliverOne(ctx, m, out)
		}
	}
}

func (w *NotifierWorker) deliverOne(ctx context.Context, m kafka.Message, out chan<- model.NotificationRecord) {
	var env model.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil || env.ID == "" {
		_ = w.Consumer.Commit(ctx, m) // poison → commit, skip
		if err != nil {
			log.Printf("[notifier] bad envelope json: %v", err)
		} else {
			log.Printf("[notifier] envelope missing id")
		}
		return
	}

	rec := model.NotificationRecord{
		ID:        env.ID,
		AccountID: env.AccountID,
		Band:      env.Band.String(),
		To:        env.To,
		Subject:   env.Subject,
		CreatedAt: time.Now(),
	}

	provider, err := w.Relay.Dispatch(ctx, env)
	if err == nil {
		rec.Status = model.DeliverySent
		rec.Provider = provider
		metrics.DeliveriesTotal.WithLabelValues("sent").Inc()
	} else {
		rec.Status = model.DeliveryFailed
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		log.Printf("[notifier] delivery failed id=%s: %v", env.ID, err)
	}

	out <- rec

	// always commit (at-least-once; a redelivered envelope just logs twice)
	if err := w.Consumer.Commit(ctx, m); err != nil {
		log.Printf("[notifier] commit err: %v", err)
	}
}

// runLogWriter does size/time-based flush of delivery records into ClickHouse.
func (w *NotifierWorker) runLogWriter(ctx context.Context, in <-chan model.NotificationRecord) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var buf []model.NotificationRecord

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := w.Log.InsertDeliveries(ctx, buf); err != nil {
			log.Printf("[notifier] clickhouse insert err: %v", err)
		} else {
			log.Printf("[notifier] flushed %d delivery records", len(buf))
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case rec, ok := <-in:
			if !ok {
				flush()
				return
			}
			buf = append(buf, rec)
			if len(buf) >= w.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}
