package cmd

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
	httpSrv "github.com/jpanzo/debt-tracker/internal/http"
	"github.com/jpanzo/debt-tracker/internal/logger"
	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/notifier"
	"github.com/jpanzo/debt-tracker/internal/service/balance"
	"github.com/jpanzo/debt-tracker/internal/service/escalation"
	"github.com/jpanzo/debt-tracker/internal/service/retention"
	"github.com/jpanzo/debt-tracker/internal/storage/clickhouse"
	"github.com/jpanzo/debt-tracker/internal/storage/mysql"
	"github.com/jpanzo/debt-tracker/internal/util"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server and escalation scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

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
		defer func() {
			_ = chDB.Close()
		}()

		// stores
		store := mysql.New(mysqlDB)
		clientsRepo := mysql.NewClientsRepo(mysqlDB)
		chNotifications := clickhouse.NewNotificationsRepo(chDB)

		// notifier: outbox survives restarts, relay delivers inline
		var notify notifier.Notifier
		if cfg.Notifier.Mode == "relay" {
			relay, err := buildRelay(cfg)
			if err != nil {
				return err
			}
			notify = relay
		} else {
			notify = notifier.NewOutboxNotifier(store, cfg.Notifier.Topic, logger.Log)
		}

		// services share the per-account locks so payments and increments
		// for one account never interleave
		locks := util.NewKeyMutex()
		trimmer := retention.NewTrimmer(cfg.Retention.DebtKeep, cfg.Retention.PaymentKeep)

		balanceSvc := balance.New(
			store,
			trimmer,
			notify,
			locks,
			cfg.Payment.Minimum,
			cfg.Escalation.RecentWindow,
			cfg.Notifier.DefaultTo,
			logger.Log,
		)

		scheduler := escalation.New(
			store,
			trimmer,
			notify,
			locks,
			model.BandThresholds{
				Pending:  cfg.Bands.Pending,
				Elevated: cfg.Bands.Elevated,
				Critical: cfg.Bands.Critical,
			},
			escalation.Config{
				Cadence:     cfg.Escalation.Cadence,
				WarningLead: cfg.Escalation.WarningLead,
				Increment:   cfg.Escalation.Increment,
				DefaultTo:   cfg.Notifier.DefaultTo,
			},
			logger.Log,
		)

		if err := scheduler.Start(context.Background()); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer scheduler.Stop()

		server := httpSrv.NewServer(cfg, balanceSvc, clientsRepo, chNotifications, redisClient)

		errCh := make(chan error, 1)
		go func() {
			log.Printf("starting http on %s", cfg.HTTP.Addr)
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("signal received: %s, shutting down...", sig)
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

// buildRelay assembles the HTTP mail-relay dispatcher from config.
func buildRelay(cfg config.Config) (*notifier.Relay, error) {
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
		return nil, fmt.Errorf("no providers enabled in config")
	}
	return notifier.NewRelay(provs, cfg.Notifier.From, cfg.Notifier.MaxAttempts, logger.Log), nil
}
