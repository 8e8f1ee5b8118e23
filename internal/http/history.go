package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/jpanzo/debt-tracker/internal/service/balance"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type debtHistoryItem struct {
	Balance    int64     `json:"balance"`
	RecordedAt time.Time `json:"recorded_at"`
}

type paymentHistoryItem struct {
	Amount int64     `json:"amount"`
	PaidAt time.Time `json:"paid_at"`
}

func debtHistoryHandler(svc *balance.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		entries, err := svc.GetDebtHistory(c.Request().Context(), id)
		if err != nil {
			log.Errorf("debt history failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		items := make([]debtHistoryItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, debtHistoryItem{Balance: e.Balance, RecordedAt: e.RecordedAt})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(items),
			"history": items,
		})
	}
}

func paymentHistoryHandler(svc *balance.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		entries, err := svc.GetPaymentHistory(c.Request().Context(), id)
		if err != nil {
			log.Errorf("payment history failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		items := make([]paymentHistoryItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, paymentHistoryItem{Amount: e.Amount, PaidAt: e.PaidAt})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(items),
			"history": items,
		})
	}
}
