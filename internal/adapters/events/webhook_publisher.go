package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	signatureHeader       = "X-Auditlog-Signature"
)

// incidentNotification is the webhook body. SystemEvent carries the event
// snapshot stored in the outbox.
type incidentNotification struct {
	Topic       string          `json:"topic"`
	EventID     string          `json:"eventId"`
	Kind        string          `json:"kind"`
	Severity    domain.Severity `json:"severity"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Actor       string          `json:"actor,omitempty"`
	SystemEvent json.RawMessage `json:"systemEvent"`
}

// WebhookPublisher POSTs system event notifications to an incident endpoint
// such as a pager or chat bridge. A non-2xx response is an error so the
// dispatcher retries it.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
	clock  clock.Clock
}

type WebhookOption func(*WebhookPublisher)

func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(p *WebhookPublisher) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

func WithWebhookClock(c clock.Clock) WebhookOption {
	return func(p *WebhookPublisher) { p.clock = c }
}

func NewWebhookPublisher(url, secret string, opts ...WebhookOption) *WebhookPublisher {
	p := &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: defaultWebhookTimeout},
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an incidentNotification signed as
//
//	X-Auditlog-Signature: t=<unix seconds>,v1=<hex HMAC-SHA256 of "t.severity.body">
//
// Binding the timestamp and severity lets receivers reject replays and
// downgraded alerts. Delivery is at least once; dedupe on eventId.
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	body, err := json.Marshal(incidentNotification{
		Topic:       topic,
		EventID:     event.EventID,
		Kind:        event.EventType,
		Severity:    event.Severity,
		OccurredAt:  event.OccurredAt,
		Actor:       event.Actor,
		SystemEvent: event.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	ts := p.clock.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "auditlog-webhook/1")
	req.Header.Set("X-Auditlog-Event-Id", event.EventID)
	req.Header.Set(signatureHeader, fmt.Sprintf("t=%d,v1=%s", ts, sign(p.secret, ts, event.Severity, body)))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s: %w", topic, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", topic, resp.StatusCode)
	}
	return nil
}

func sign(secret []byte, ts int64, severity domain.Severity, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte{'.'})
	mac.Write([]byte(severity))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
