package usecase

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

// ResolveSystemEvent moves an open event to resolved. A second attempt on the
// same event always fails with domain.ErrAlreadyResolved. An empty resolvedBy
// defaults to the caller.
func (s *AuditService) ResolveSystemEvent(ctx context.Context, caller domain.Caller, id, resolvedBy, resolution string) (domain.SystemEvent, error) {
	if err := s.require(ctx, caller, domain.ObjSystemEvents, domain.ActResolve); err != nil {
		return domain.SystemEvent{}, err
	}
	if resolvedBy == "" {
		resolvedBy = caller.ID
	}
	res := domain.Resolution{EventID: id, ResolvedBy: resolvedBy, Resolution: resolution}
	if err := res.Validate(); err != nil {
		return domain.SystemEvent{}, err
	}

	event, err := s.store.ResolveSystemEvent(ctx, res)
	switch {
	case err == nil:
		s.metrics.ObserveResolve("resolved")
	case errors.Is(err, domain.ErrConflict):
		s.metrics.ObserveResolve("conflict")
	case errors.Is(err, domain.ErrNotFound):
		s.metrics.ObserveResolve("not_found")
	default:
		s.metrics.ObserveResolve("error")
	}
	if err != nil {
		return domain.SystemEvent{}, err
	}

	s.log.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"resolved_by": event.ResolvedBy,
	}).Info("system event resolved")
	return event, nil
}
