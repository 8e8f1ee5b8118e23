package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jpanzo/debt-tracker/internal/service/balance"
	"github.com/jpanzo/debt-tracker/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func getBalanceHandler(svc *balance.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		bal, err := svc.GetBalance(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "account not found"})
			}
			log.Errorf("get balance failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{"balance": bal})
	}
}

func recentlyIncrementedHandler(svc *balance.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		recent, err := svc.WasRecentlyIncremented(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "account not found"})
			}
			log.Errorf("recently-incremented check failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		// true also when a payment just landed; callers cannot tell the
		// two mutation kinds apart from this signal
		return c.JSON(http.StatusOK, map[string]any{"incremented": recent})
	}
}
