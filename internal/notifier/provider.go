package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jpanzo/debt-tracker/internal/model"
)

// Provider is one mail-relay endpoint the Relay can deliver through.
type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	Send(ctx context.Context, from string, env model.Envelope) error
}

// HTTPProvider posts the message as JSON to a mail-relay service.
type HTTPProvider struct {
	name     string
	baseURL  string
	sendPath string
	client   *http.Client
	br       *breaker
}

func NewHTTPProvider(name, baseURL, sendPath string, timeoutMs, failThreshold, openForMs int) *HTTPProvider {
	if timeoutMs <= 0 {
		timeoutMs = 3000
	}
	if failThreshold <= 0 {
		failThreshold = 3
	}
	if openForMs <= 0 {
		openForMs = 15000
	}

	return &HTTPProvider{
		name:     name,
		baseURL:  baseURL,
		sendPath: sendPath,
		client:   &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:       newBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *HTTPProvider) Name() string  { return p.name }
func (p *HTTPProvider) Ready() bool   { return p.br.ready() }
func (p *HTTPProvider) Acquire() bool { return p.br.acquire() }

type relayPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (p *HTTPProvider) Send(ctx context.Context, from string, env model.Envelope) error {
	b, _ := json.Marshal(relayPayload{
		From:    from,
		To:      env.To,
		Subject: env.Subject,
		Body:    env.Body,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.sendPath, bytes.NewReader(b))
	if err != nil {
		p.br.onFailure()
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		p.br.onFailure()
		return err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		p.br.onFailure()
		return fmt.Errorf("provider=%s status=%d", p.name, res.StatusCode)
	}

	p.br.onSuccess()
	return nil
}
