package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/rs/zerolog"
)

// notifierRetryIntervals is the wait before each redelivery attempt.
var notifierRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

const (
	defaultNotifierBuffer = 256

	HeaderEventSignature = "X-Vault-Signature"
	HeaderEventTimestamp = "X-Vault-Timestamp"
)

// EventPayload is the JSON body POSTed to every webhook URL.
type EventPayload struct {
	EventType string       `json:"event_type"`
	Data      domain.Event `json:"data"`
	Signature string       `json:"signature"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookSubscriber is one URL with its own queue, so a dead endpoint stuck
// in its retry ladder delays only itself.
type webhookSubscriber struct {
	url   string
	queue chan domain.Event
}

// EventNotifier delivers committed journal records to webhook URLs. Publish
// enqueues without blocking; Run drains every URL's queue in order.
type EventNotifier struct {
	subscribers []*webhookSubscriber
	secret      string
	sigSvc      ports.SignatureService
	httpClient  HTTPClient
	retries     []time.Duration
	log         zerolog.Logger
}

// NewEventNotifier creates a notifier. buffer <= 0 selects a default; it
// bounds each URL's queue.
func NewEventNotifier(
	urls []string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	buffer int,
	log zerolog.Logger,
) *EventNotifier {
	if buffer <= 0 {
		buffer = defaultNotifierBuffer
	}
	subs := make([]*webhookSubscriber, 0, len(urls))
	for _, url := range urls {
		subs = append(subs, &webhookSubscriber{url: url, queue: make(chan domain.Event, buffer)})
	}
	return &EventNotifier{
		subscribers: subs,
		secret:      secret,
		sigSvc:      sigSvc,
		httpClient:  httpClient,
		retries:     notifierRetryIntervals,
		log:         log,
	}
}

// Publish implements ports.EventPublisher.
func (n *EventNotifier) Publish(event *domain.Event) {
	for _, sub := range n.subscribers {
		select {
		case sub.queue <- *event:
		default:
			n.log.Error().Int64("event_seq", event.Seq).Str("url", sub.url).Msg("webhook: queue full, event not delivered")
		}
	}
}

// Run delivers queued events until ctx is done, one goroutine per URL.
func (n *EventNotifier) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sub := range n.subscribers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-sub.queue:
					n.deliver(ctx, sub.url, event)
				}
			}
		}()
	}
	wg.Wait()
}

func (n *EventNotifier) deliver(ctx context.Context, url string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		n.log.Error().Err(err).Int64("event_seq", event.Seq).Msg("webhook: failed to marshal event")
		return
	}

	payload := EventPayload{
		EventType: string(event.Kind),
		Data:      event,
		Signature: n.sigSvc.Sign(n.secret, string(data)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error().Err(err).Int64("event_seq", event.Seq).Msg("webhook: failed to marshal payload")
		return
	}

	n.deliverWithRetries(ctx, url, body, event.Seq)
}

// deliverWithRetries attempts delivery, then once more after each retry interval.
func (n *EventNotifier) deliverWithRetries(ctx context.Context, url string, body []byte, seq int64) {
	for attempt := 0; attempt <= len(n.retries); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				n.log.Warn().Int64("event_seq", seq).Str("url", url).Msg("webhook: shutdown before delivery")
				return
			case <-time.After(n.retries[attempt-1]):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			n.log.Error().Err(err).Int64("event_seq", seq).Int("attempt", attempt+1).Msg("webhook: failed to create request")
			return
		}
		ts := time.Now().Unix()
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderEventTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderEventSignature, n.sigSvc.Sign(n.secret,
			n.sigSvc.BuildCanonicalString(http.MethodPost, req.URL.Path, ts, strconv.FormatInt(seq, 10), string(body))))

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Int64("event_seq", seq).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.log.Info().Int64("event_seq", seq).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered successfully")
			return
		}

		n.log.Warn().Int64("event_seq", seq).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	n.log.Error().Int64("event_seq", seq).Str("url", url).Msg("webhook: all retry attempts exhausted")
}
