package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
)

type outboxRepoStub struct {
	now    time.Time
	events []domain.OutboxEvent

	fetchLimits []int
	failed      []failedMark
	dead        []deadMark
	dispatched  []int64
}

type failedMark struct {
	id           int64
	attempts     int
	nextAttempt  time.Time
	errorMessage string
}

type deadMark struct {
	id           int64
	attempts     int
	errorMessage string
}

func (r *outboxRepoStub) FetchPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	r.fetchLimits = append(r.fetchLimits, limit)
	out := make([]domain.OutboxEvent, 0, limit)
	for _, e := range r.events {
		if e.Status != "pending" || e.NextAttemptAt.After(r.now) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepoStub) find(id int64) (*domain.OutboxEvent, error) {
	for i := range r.events {
		if r.events[i].ID == id {
			return &r.events[i], nil
		}
	}
	return nil, errors.New("unknown outbox id")
}

func (r *outboxRepoStub) MarkDispatched(_ context.Context, id int64) error {
	r.dispatched = append(r.dispatched, id)
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.Status = "dispatched"
	e.DispatchedAt = &r.now
	return nil
}

func (r *outboxRepoStub) MarkFailed(_ context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return err
	}
	r.failed = append(r.failed, failedMark{id: id, attempts: attempts, nextAttempt: parsed, errorMessage: errMsg})
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.Attempts = attempts
	e.NextAttemptAt = parsed
	e.LastError = errMsg
	return nil
}

func (r *outboxRepoStub) MarkDead(_ context.Context, id int64, attempts int, errMsg string) error {
	r.dead = append(r.dead, deadMark{id: id, attempts: attempts, errorMessage: errMsg})
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.Status = "dead"
	e.Attempts = attempts
	e.LastError = errMsg
	return nil
}

type publisherStub struct {
	errByID   map[string]error
	published []domain.EventEnvelope
	topics    []string
}

func (p *publisherStub) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.published = append(p.published, event)
	p.topics = append(p.topics, topic)
	if err, ok := p.errByID[event.EventID]; ok {
		return err
	}
	return nil
}

func pendingEvent(t *testing.T, id int64, eventID string, now time.Time) domain.OutboxEvent {
	t.Helper()
	env := domain.EventEnvelope{
		EventID:       eventID,
		EventType:     domain.EventSystemEventCreated,
		SchemaVersion: domain.CurrentEventSchemaVersion,
		AggregateType: "system_event",
		AggregateID:   "se-" + eventID,
		Severity:      domain.SeverityError,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return domain.OutboxEvent{
		ID:            id,
		EventID:       eventID,
		Status:        "pending",
		NextAttemptAt: now.Add(-time.Second),
		PayloadJSON:   payload,
		Topic:         env.Topic(),
	}
}

func TestOutboxDispatcherDispatchBatchSuccess(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	repo := &outboxRepoStub{now: now, events: []domain.OutboxEvent{pendingEvent(t, 1, "e1", now)}}
	pub := &publisherStub{}
	metrics := &metricsSpy{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10, WithDispatcherMetrics(metrics), WithDispatcherClock(clock.Fixed(now)))

	if err := d.DispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.fetchLimits) != 1 || repo.fetchLimits[0] != 10 {
		t.Fatalf("expected fetch limit 10, got %v", repo.fetchLimits)
	}
	if len(pub.published) != 1 || pub.topics[0] != "system-events.error.created" {
		t.Fatalf("expected one event on system-events.error.created, got %v", pub.topics)
	}
	if len(repo.dispatched) != 1 || repo.dispatched[0] != 1 {
		t.Fatalf("expected id=1 marked dispatched, got %v", repo.dispatched)
	}
	if len(repo.failed) != 0 || len(repo.dead) != 0 {
		t.Fatalf("expected no failures/dead marks, got failed=%d dead=%d", len(repo.failed), len(repo.dead))
	}
	if len(metrics.outbox) != 1 || metrics.outbox[0] != "success" {
		t.Fatalf("expected one success observation, got %v", metrics.outbox)
	}
}

func TestOutboxDispatcherPublishFailureMarksFailedWithRetry(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	repo := &outboxRepoStub{now: now, events: []domain.OutboxEvent{pendingEvent(t, 2, "e2", now)}}
	pub := &publisherStub{errByID: map[string]error{"e2": errors.New("publisher down")}}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10, WithDispatcherClock(clock.Fixed(now)))

	if err := d.DispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.failed) != 1 {
		t.Fatalf("expected one failed mark, got %d", len(repo.failed))
	}
	if repo.failed[0].attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", repo.failed[0].attempts)
	}
	if !repo.failed[0].nextAttempt.Equal(now.Add(time.Second)) {
		t.Fatalf("expected retry in 1s, got %v", repo.failed[0].nextAttempt)
	}
	if repo.failed[0].errorMessage != "publisher down" {
		t.Fatalf("unexpected error message: %q", repo.failed[0].errorMessage)
	}
	if len(repo.dispatched) != 0 || len(repo.dead) != 0 {
		t.Fatalf("expected no dispatched/dead marks, got %v %v", repo.dispatched, repo.dead)
	}
}

func TestOutboxDispatcherRetryBudgetMovesToDead(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	event := pendingEvent(t, 3, "e3", now)
	event.Attempts = 2
	repo := &outboxRepoStub{now: now, events: []domain.OutboxEvent{event}}
	pub := &publisherStub{errByID: map[string]error{"e3": errors.New("still failing")}}
	metrics := &metricsSpy{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10, WithMaxRetry(3), WithDispatcherMetrics(metrics))

	if err := d.DispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}

	if len(repo.dead) != 1 || repo.dead[0].attempts != 3 {
		t.Fatalf("expected one dead mark with attempts=3, got %v", repo.dead)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failed marks when dead-lettered, got %d", len(repo.failed))
	}
	if len(metrics.outbox) != 1 || metrics.outbox[0] != "dead" {
		t.Fatalf("expected one dead observation, got %v", metrics.outbox)
	}
}

func TestOutboxDispatcherUndecodablePayloadIsRetried(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	event := pendingEvent(t, 6, "e6", now)
	event.PayloadJSON = json.RawMessage(`{`)
	repo := &outboxRepoStub{now: now, events: []domain.OutboxEvent{event}}
	pub := &publisherStub{}
	d := NewOutboxDispatcher(repo, pub, time.Second, 10, WithDispatcherClock(clock.Fixed(now)))

	if err := d.DispatchBatch(context.Background()); err != nil {
		t.Fatalf("dispatch batch: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected nothing published, got %d", len(pub.published))
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected one failed mark, got %d", len(repo.failed))
	}
}

func TestOutboxDispatcherRestartResumeDispatchesRemainingPending(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	repo := &outboxRepoStub{now: now, events: []domain.OutboxEvent{
		pendingEvent(t, 4, "e4", now),
		pendingEvent(t, 5, "e5", now),
	}}

	pub := &publisherStub{errByID: map[string]error{"e4": errors.New("transient")}}
	d1 := NewOutboxDispatcher(repo, pub, time.Second, 10, WithDispatcherClock(clock.Fixed(now)))
	if err := d1.DispatchBatch(context.Background()); err != nil {
		t.Fatalf("first dispatch batch: %v", err)
	}
	if len(repo.dispatched) != 1 || repo.dispatched[0] != 5 {
		t.Fatalf("expected only id=5 dispatched after first run, got %v", repo.dispatched)
	}

	repo.now = now.Add(2 * time.Second)
	pub.errByID = map[string]error{}
	d2 := NewOutboxDispatcher(repo, pub, time.Second, 10)
	if err := d2.DispatchBatch(context.Background()); err != nil {
		t.Fatalf("second dispatch batch: %v", err)
	}

	if len(repo.dispatched) != 2 || repo.dispatched[1] != 4 {
		t.Fatalf("expected resumed dispatch of id=4, got %v", repo.dispatched)
	}
}

func TestOutboxDispatcherStartClose(t *testing.T) {
	now := time.Now().UTC()
	repo := &outboxRepoStub{now: now, events: []domain.OutboxEvent{pendingEvent(t, 7, "e7", now)}}
	d := NewOutboxDispatcher(repo, &publisherStub{}, time.Hour, 10)

	d.Start(context.Background())
	d.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := d.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if len(repo.dispatched) == 1 {
			return
		}
		d.Start(context.Background())
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected the first loop iteration to dispatch, got %v", repo.dispatched)
}
