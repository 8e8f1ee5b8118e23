package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/storage/clickhouse"
	echo "github.com/labstack/echo/v4"
)

func listNotificationsHandler(chRepo clickhouse.NotificationsRepo) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		accountID := strings.TrimSpace(c.QueryParam("account_id"))

		var st model.DeliveryStatus
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			tmp := model.DeliveryStatus(raw)
			if tmp.Valid() {
				st = tmp
			}
		}

		recs, err := chRepo.List(c.Request().Context(), accountID, st, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(recs),
			"results": recs,
		})
	}
}
