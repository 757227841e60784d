package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
)

// OutboxDispatcher drains system event notifications from the outbox and
// hands them to the publisher. Delivery is at-least-once.
type OutboxDispatcher struct {
	repo      ports.OutboxRepository
	publisher ports.EventPublisher
	metrics   ports.Metrics
	log       logrus.FieldLogger
	clock     clock.Clock
	interval  time.Duration
	batchSize int
	maxRetry  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type DispatcherOption func(*OutboxDispatcher)

func WithDispatcherMetrics(m ports.Metrics) DispatcherOption {
	return func(d *OutboxDispatcher) { d.metrics = m }
}

func WithDispatcherLogger(l logrus.FieldLogger) DispatcherOption {
	return func(d *OutboxDispatcher) { d.log = l }
}

func WithDispatcherClock(c clock.Clock) DispatcherOption {
	return func(d *OutboxDispatcher) { d.clock = c }
}

func WithMaxRetry(n int) DispatcherOption {
	return func(d *OutboxDispatcher) {
		if n > 0 {
			d.maxRetry = n
		}
	}
}

func NewOutboxDispatcher(repo ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize int, opts ...DispatcherOption) *OutboxDispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	d := &OutboxDispatcher{
		repo:      repo,
		publisher: publisher,
		metrics:   NopMetrics{},
		log:       logrus.StandardLogger(),
		clock:     clock.RealClock{},
		interval:  interval,
		batchSize: batchSize,
		maxRetry:  5,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *OutboxDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go d.loop(ctx)
}

func (d *OutboxDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.DispatchBatch(ctx); err != nil && ctx.Err() == nil {
			d.log.WithError(err).Error("outbox dispatch batch failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchBatch publishes one batch of due events.
func (d *OutboxDispatcher) DispatchBatch(ctx context.Context) error {
	events, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		var envelope domain.EventEnvelope
		if err := json.Unmarshal(event.PayloadJSON, &envelope); err != nil {
			if markErr := d.markFailure(ctx, event, fmt.Sprintf("decode payload: %v", err)); markErr != nil {
				return markErr
			}
			continue
		}

		if err := d.publisher.Publish(ctx, event.Topic, envelope); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"event_id": event.EventID,
				"topic":    event.Topic,
				"attempt":  event.Attempts + 1,
			}).Warn("publish outbox event")
			if markErr := d.markFailure(ctx, event, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}

		if err := d.repo.MarkDispatched(ctx, event.ID); err != nil {
			return err
		}
		d.metrics.ObserveOutboxDispatch("success")
	}

	return nil
}

func (d *OutboxDispatcher) markFailure(ctx context.Context, event domain.OutboxEvent, errMsg string) error {
	attempts := event.Attempts + 1
	if attempts >= d.maxRetry {
		if err := d.repo.MarkDead(ctx, event.ID, attempts, errMsg); err != nil {
			return err
		}
		d.metrics.ObserveOutboxDispatch("dead")
		return nil
	}
	next := d.clock.Now().UTC().Add(backoffDuration(attempts)).Format(time.RFC3339Nano)
	if err := d.repo.MarkFailed(ctx, event.ID, attempts, next, errMsg); err != nil {
		return err
	}
	d.metrics.ObserveOutboxDispatch("failure")
	return nil
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	d := time.Duration(attempt*attempt) * time.Second
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
