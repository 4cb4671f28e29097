package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Dispatcher delivers best-effort operator notifications to an HTTP
// webhook. Delivery failures are logged and swallowed; the triggering
// request path must never depend on notification-channel health.
type Dispatcher struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func New(url string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		url:     strings.TrimSpace(url),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured. An unconfigured
// channel degrades alerting, nothing else.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.url != ""
}

// Send posts {"text": message} to the webhook and reports whether the
// channel accepted it. Transport errors and non-2xx responses return
// false, never an error.
func (d *Dispatcher) Send(message string) bool {
	if !d.Enabled() {
		return false
	}
	body, _ := json.Marshal(map[string]string{"text": message})

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		slog.Error("webhook request build failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		slog.Warn("webhook delivery failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("webhook rejected notification", "status", resp.StatusCode)
		return false
	}
	return true
}

// SendAsync detaches the delivery onto its own goroutine and invokes
// done (if non-nil) with the outcome.
func (d *Dispatcher) SendAsync(message string, done func(delivered bool)) {
	go func() {
		delivered := d.Send(message)
		if done != nil {
			done(delivered)
		}
	}()
}
