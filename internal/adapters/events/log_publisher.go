package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.log.WithFields(logrus.Fields{
		"topic":      topic,
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"severity":   event.Severity,
		"aggregate":  event.AggregateType + "/" + event.AggregateID,
		"actor":      event.Actor,
	}).Info("outbox publish")
	return nil
}
