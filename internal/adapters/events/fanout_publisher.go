package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
)

// Route sends events at or above MinSeverity to Publisher. An empty
// MinSeverity accepts everything.
type Route struct {
	Name        string
	Publisher   ports.EventPublisher
	MinSeverity domain.Severity
}

// FanoutPublisher delivers to every matching route. One failing route fails
// the whole publish, so the dispatcher retries and routes that already
// succeeded see the event again.
type FanoutPublisher struct {
	routes []Route
}

func NewFanoutPublisher(routes ...Route) *FanoutPublisher {
	return &FanoutPublisher{routes: routes}
}

func (p *FanoutPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	var errs []error
	for _, r := range p.routes {
		if r.MinSeverity != "" && event.Severity.Rank() < r.MinSeverity.Rank() {
			continue
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
		}
	}
	return errors.Join(errs...)
}
