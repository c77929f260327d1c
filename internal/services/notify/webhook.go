package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
)

type WebhookOptions struct {
	URL        string // may contain {event} and {key}
	Key        string
	RatePerSec int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// WebhookSink posts maker-style {"value1","value2","value3"} payloads.
type WebhookSink struct {
	url     string
	key     string
	http    *http.Client
	limiter *rate.Limiter
}

func NewWebhookSink(o WebhookOptions) *WebhookSink {
	if o.RatePerSec <= 0 {
		o.RatePerSec = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	return &WebhookSink{
		url:     o.URL,
		key:     o.Key,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(o.RatePerSec), o.RatePerSec),
	}
}

func (w *WebhookSink) target(event string) string {
	return strings.NewReplacer(
		"{event}", url.PathEscape(event),
		"{key}", url.PathEscape(w.key),
	).Replace(w.url)
}

func (w *WebhookSink) Send(ctx context.Context, n messages.Notification) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}
	body := map[string]string{}
	for i, v := range n.Data {
		body[fmt.Sprintf("value%d", i+1)] = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.target(n.Event), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
