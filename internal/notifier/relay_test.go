package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu    sync.Mutex
	name  string
	ready bool
	err   error
	sent  []model.Envelope
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Ready() bool   { return p.ready }
func (p *fakeProvider) Acquire() bool { return p.ready }

func (p *fakeProvider) Send(_ context.Context, _ string, env model.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, env)
	return nil
}

func (p *fakeProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestRelayDispatchRoundRobin(t *testing.T) {
	a := &fakeProvider{name: "a", ready: true}
	b := &fakeProvider{name: "b", ready: true}
	r := NewRelay([]Provider{a, b}, "noreply@example.com", 2, nil)

	for i := 0; i < 4; i++ {
		_, err := r.Dispatch(context.Background(), model.Envelope{ID: "env"})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
}

func TestRelayDispatchSkipsUnhealthy(t *testing.T) {
	down := &fakeProvider{name: "down", ready: false}
	up := &fakeProvider{name: "up", ready: true}
	r := NewRelay([]Provider{down, up}, "noreply@example.com", 2, nil)

	name, err := r.Dispatch(context.Background(), model.Envelope{ID: "env"})
	require.NoError(t, err)
	assert.Equal(t, "up", name)
	assert.Equal(t, 0, down.count())
}

func TestRelayDispatchRetriesNextProvider(t *testing.T) {
	bad := &fakeProvider{name: "bad", ready: true, err: errors.New("relay unavailable")}
	good := &fakeProvider{name: "good", ready: true}
	r := NewRelay([]Provider{bad, good}, "noreply@example.com", 2, nil)

	name, err := r.Dispatch(context.Background(), model.Envelope{ID: "env"})
	require.NoError(t, err)
	assert.Equal(t, "good", name)
}

func TestRelayDispatchNoHealthyProviders(t *testing.T) {
	down := &fakeProvider{name: "down", ready: false}
	r := NewRelay([]Provider{down}, "noreply@example.com", 2, nil)

	_, err := r.Dispatch(context.Background(), model.Envelope{ID: "env"})
	assert.ErrorIs(t, err, ErrNoHealthy)
}

func TestRelaySendSwallowsFailure(t *testing.T) {
	r := NewRelay(nil, "noreply@example.com", 2, nil)

	// must not panic or return anything
	r.Send(context.Background(), model.Envelope{ID: "env"})
}

func TestHTTPProviderSend(t *testing.T) {
	var got relayPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProvider("test", srv.URL, "/send", 1000, 3, 1000)
	err := p.Send(context.Background(), "noreply@example.com", model.Envelope{
		To:      "debtor@example.com",
		Subject: "Payment received",
		Body:    "A payment of 10 units was applied.",
	})
	require.NoError(t, err)

	assert.Equal(t, "noreply@example.com", got.From)
	assert.Equal(t, "debtor@example.com", got.To)
	assert.Equal(t, "Payment received", got.Subject)
	assert.True(t, p.Ready())
}

func TestHTTPProviderBreakerTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPProvider("flaky", srv.URL, "/send", 1000, 2, 60000)

	for i := 0; i < 2; i++ {
		err := p.Send(context.Background(), "noreply@example.com", model.Envelope{To: "x@example.com"})
		assert.Error(t, err)
	}

	// two consecutive failures open the breaker for a minute
	assert.False(t, p.Ready())
	assert.False(t, p.Acquire())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)

	b.onFailure()
	assert.False(t, b.ready())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.ready())

	// one probe slot only
	assert.True(t, b.acquire())
	assert.False(t, b.acquire())

	b.onSuccess()
	assert.True(t, b.ready())
	assert.True(t, b.acquire())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := newBreaker(1, 10*time.Millisecond)

	b.onFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, b.acquire())

	b.onFailure()
	assert.False(t, b.ready())
}
