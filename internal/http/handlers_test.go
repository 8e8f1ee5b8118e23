package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/jpanzo/debt-tracker/internal/service/balance"
	"github.com/jpanzo/debt-tracker/internal/service/retention"
	"github.com/jpanzo/debt-tracker/internal/storage/memory"
	"github.com/jpanzo/debt-tracker/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, model.Envelope) {}

func newTestBalanceService(store *memory.Store) *balance.Service {
	return balance.New(
		store,
		retention.NewTrimmer(20, 15),
		nopNotifier{},
		util.NewKeyMutex(),
		10,
		time.Minute,
		"ops@example.com",
		nil,
	)
}

func doRequest(t *testing.T, h echo.HandlerFunc, method, target, accountID, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()

	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(accountID)

	require.NoError(t, h(c))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestGetBalanceHandler(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 42})
	h := getBalanceHandler(newTestBalanceService(store))

	rec, payload := doRequest(t, h, http.MethodGet, "/v1/accounts/acc-1/balance", "acc-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(42), payload["balance"])
}

func TestGetBalanceHandlerNotFound(t *testing.T) {
	h := getBalanceHandler(newTestBalanceService(memory.New()))

	rec, payload := doRequest(t, h, http.MethodGet, "/v1/accounts/acc-ghost/balance", "acc-ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "account not found", payload["error"])
}

func TestApplyPaymentHandler(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 50})
	h := applyPaymentHandler(newTestBalanceService(store))

	rec, payload := doRequest(t, h, http.MethodPost, "/v1/accounts/acc-1/payments", "acc-1", `{"amount":20}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(30), payload["balance"])
}

func TestApplyPaymentHandlerErrors(t *testing.T) {
	cases := []struct {
		name    string
		account string
		body    string
		code    int
		errCode string
	}{
		{"below minimum", "acc-1", `{"amount":5}`, http.StatusBadRequest, "invalid_amount"},
		{"exceeds balance", "acc-1", `{"amount":60}`, http.StatusBadRequest, "insufficient_balance"},
		{"unknown account", "acc-ghost", `{"amount":20}`, http.StatusNotFound, "account not found"},
		{"malformed body", "acc-1", `{"amount":`, http.StatusBadRequest, "bad request"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			store.PutAccount(model.Account{ID: "acc-1", Balance: 50})
			h := applyPaymentHandler(newTestBalanceService(store))

			rec, payload := doRequest(t, h, http.MethodPost, "/v1/accounts/"+tc.account+"/payments", tc.account, tc.body)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.errCode, payload["error"])
		})
	}
}

func TestDebtHistoryHandler(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 50})
	require.NoError(t, store.InsertDebtHistory(context.Background(), "acc-1", 40))
	require.NoError(t, store.InsertDebtHistory(context.Background(), "acc-1", 50))
	h := debtHistoryHandler(newTestBalanceService(store))

	rec, payload := doRequest(t, h, http.MethodGet, "/v1/accounts/acc-1/debt-history", "acc-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), payload["count"])

	history, ok := payload["history"].([]any)
	require.True(t, ok)
	require.Len(t, history, 2)
	first := history[0].(map[string]any)
	assert.Equal(t, float64(40), first["balance"]) // oldest first
}

func TestPaymentHistoryHandlerEmpty(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-1", Balance: 50})
	h := paymentHistoryHandler(newTestBalanceService(store))

	rec, payload := doRequest(t, h, http.MethodGet, "/v1/accounts/acc-1/payment-history", "acc-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), payload["count"])

	history, ok := payload["history"].([]any)
	require.True(t, ok)
	assert.Empty(t, history)
}

func TestRecentlyIncrementedHandler(t *testing.T) {
	store := memory.New()
	store.PutAccount(model.Account{ID: "acc-fresh", Balance: 10, UpdatedAt: time.Now()})
	store.PutAccount(model.Account{ID: "acc-stale", Balance: 10, UpdatedAt: time.Now().Add(-10 * time.Minute)})
	svc := newTestBalanceService(store)

	h := recentlyIncrementedHandler(svc)

	rec, payload := doRequest(t, h, http.MethodGet, "/v1/accounts/acc-fresh/recently-incremented", "acc-fresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["incremented"])

	rec, payload = doRequest(t, h, http.MethodGet, "/v1/accounts/acc-stale/recently-incremented", "acc-stale", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["incremented"])
}
