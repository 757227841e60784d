package events

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

type recordingPublisher struct {
	err  error
	seen []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ domain.EventEnvelope) error {
	p.seen = append(p.seen, topic)
	return p.err
}

func TestFanoutRoutesBySeverity(t *testing.T) {
	all := &recordingPublisher{}
	pager := &recordingPublisher{}
	fan := NewFanoutPublisher(
		Route{Name: "all", Publisher: all},
		Route{Name: "pager", Publisher: pager, MinSeverity: domain.SeverityError},
	)

	for _, sev := range []domain.Severity{domain.SeverityInfo, domain.SeverityWarning, domain.SeverityError, domain.SeverityCritical} {
		event := domain.EventEnvelope{EventType: domain.EventSystemEventCreated, Severity: sev}
		require.NoError(t, fan.Publish(context.Background(), event.Topic(), event))
	}

	assert.Len(t, all.seen, 4)
	assert.Equal(t, []string{"system-events.error.created", "system-events.critical.created"}, pager.seen)
}

func TestFanoutJoinsErrorsAndKeepsGoing(t *testing.T) {
	down := errors.New("down")
	first := &recordingPublisher{err: down}
	second := &recordingPublisher{}
	fan := NewFanoutPublisher(Route{Name: "webhook", Publisher: first}, Route{Name: "redis", Publisher: second})

	err := fan.Publish(context.Background(), "system-events.error.created", domain.EventEnvelope{Severity: domain.SeverityError})
	require.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "webhook")
	assert.Len(t, second.seen, 1)
}

func TestLogPublisherWritesFields(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	pub := NewLogPublisher(logger)

	event := domain.EventEnvelope{EventID: "evt-9", EventType: domain.EventSystemEventResolved, Severity: domain.SeverityError, AggregateType: "system_event", AggregateID: "se-9"}
	require.NoError(t, pub.Publish(context.Background(), event.Topic(), event))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "system-events.error.resolved", entry.Data["topic"])
	assert.Equal(t, "system_event/se-9", entry.Data["aggregate"])
}
