package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jpanzo/debt-tracker/internal/config"
	"github.com/jpanzo/debt-tracker/internal/db"
	"github.com/jpanzo/debt-tracker/internal/kafka"
	"github.com/jpanzo/debt-tracker/internal/logger"
	"github.com/jpanzo/debt-tracker/internal/metrics"
	"github.com/jpanzo/debt-tracker/internal/notifier"
	"github.com/jpanzo/debt-tracker/internal/storage/clickhouse"
	"github.com/jpanzo/debt-tracker/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var notifierCmd = &cobra.Command{
	Use:   "notifier",
	Short: "Deliver queued notifications from Kafka via the mail relay",
	RunE:  runNotifier,
}

func runNotifier(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Log.Level)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) mail relay providers
	var provs []notifier.Provider
	for _, pc := range cfg.Providers {
		if !pc.Enabled || strings.TrimSpace(pc.BaseURL) == "" {
			continue
		}
		provs = append(provs,
			notifier.NewHTTPProvider(
				pc.Name,
				strings.TrimRight(pc.BaseURL, "/"),
				pc.SendPath,
				pc.TimeoutMs,
				pc.Breaker.FailThreshold,
				pc.Breaker.OpenForMs,
			),
		)
	}
	if len(provs) == 0 {
		return fmt.Errorf("no providers enabled in config")
	}
	relay := notifier.NewRelay(provs, cfg.Notifier.From, cfg.Notifier.MaxAttempts, logger.Log)

	// 3) clickhouse delivery log
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer func() { _ = chDB.Close() }()

	chLog := clickhouse.NewNotificationsRepo(chDB)

	// 4) kafka consumer on the notifications topic
	topic := cfg.Notifier.Topic
	if topic == "" {
		topic = "debt.notifications"
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "debt-notifier"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewNotifierWorker(consumer, relay, chLog)

	// 5) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> notifier started topic=%s group=%s workers=%d batchSize=%d batchWait=%s",
		topic, groupID, w.Workers, w.BatchSize, w.BatchWait)

	return w.Run(ctx)
}
