package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jpanzo/debt-tracker/internal/config"
	"github.com/jpanzo/debt-tracker/internal/http/middleware"
	"github.com/jpanzo/debt-tracker/internal/metrics"
	"github.com/jpanzo/debt-tracker/internal/service/balance"
	"github.com/jpanzo/debt-tracker/internal/storage"
	"github.com/jpanzo/debt-tracker/internal/storage/clickhouse"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

// NewServer wires routes and middleware around the already-built services.
func NewServer(
	cfg config.Config,
	balanceSvc *balance.Service,
	clients storage.Clients,
	chNotifications clickhouse.NotificationsRepo,
	rds *redis.Client,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	if cfg.HTTP.CORSOrigin != "" {
		e.Use(echoMid.CORSWithConfig(echoMid.CORSConfig{
			AllowOrigins:     []string{cfg.HTTP.CORSOrigin},
			AllowCredentials: true,
		}))
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(clients)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:client:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.GET("/accounts/:id/balance", getBalanceHandler(balanceSvc))
	v1.POST("/accounts/:id/payments", applyPaymentHandler(balanceSvc))
	v1.GET("/accounts/:id/debt-history", debtHistoryHandler(balanceSvc))
	v1.GET("/accounts/:id/payment-history", paymentHistoryHandler(balanceSvc))
	v1.GET("/accounts/:id/recently-incremented", recentlyIncrementedHandler(balanceSvc))
	v1.GET("/reports/notifications", listNotificationsHandler(chNotifications))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
