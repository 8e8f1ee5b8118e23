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

type paymentReq struct {
	Amount int64 `json:"amount"`
}

func applyPaymentHandler(svc *balance.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		var req paymentReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		newBalance, err := svc.ApplyPayment(c.Request().Context(), id, req.Amount)
		if err != nil {
			switch {
			case errors.Is(err, balance.ErrInvalidAmount):
				return c.JSON(http.StatusBadRequest, map[string]any{
					"error":       "invalid_amount",
					"description": "payment amount is below the minimum",
				})
			case errors.Is(err, balance.ErrInsufficientBalance):
				return c.JSON(http.StatusBadRequest, map[string]any{
					"error":       "insufficient_balance",
					"description": "payment amount exceeds the current balance",
				})
			case errors.Is(err, storage.ErrNotFound):
				return c.JSON(http.StatusNotFound, map[string]string{"error": "account not found"})
			}

			log.Errorf("apply payment failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, map[string]any{"balance": newBalance})
	}
}
