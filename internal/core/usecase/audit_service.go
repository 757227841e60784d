package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
)

// AuditService is the single entry point for producing and reading audit
// records. Every operation is gated by the caller's role before any store call.
type AuditService struct {
	store     ports.AuditStore
	retention *RetentionService
	authz     ports.Authorizer
	validator *PayloadValidator
	metrics   ports.Metrics
	log       logrus.FieldLogger
}

type Option func(*AuditService)

func WithMetrics(m ports.Metrics) Option {
	return func(s *AuditService) { s.metrics = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *AuditService) { s.log = l }
}

func NewAuditService(store ports.AuditStore, retention *RetentionService, authz ports.Authorizer, validator *PayloadValidator, opts ...Option) *AuditService {
	s := &AuditService{
		store:     store,
		retention: retention,
		authz:     authz,
		validator: validator,
		metrics:   NopMetrics{},
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuditService) allowed(ctx context.Context, caller domain.Caller, obj, act string) (bool, error) {
	ok, err := s.authz.Authorize(ctx, caller.Role, obj, act)
	if err != nil {
		return false, fmt.Errorf("authorize %s %s: %w", act, obj, err)
	}
	return ok, nil
}

func (s *AuditService) deny(caller domain.Caller, operation string) error {
	s.metrics.ObserveDenied(operation)
	s.log.WithFields(logrus.Fields{
		"caller_id": caller.ID,
		"role":      caller.Role,
		"operation": operation,
	}).Warn("audit access denied")
	return &domain.AuthorizationError{CallerID: caller.ID, Role: caller.Role, Operation: operation}
}

// require passes only when the caller's role grants act on obj.
func (s *AuditService) require(ctx context.Context, caller domain.Caller, obj, act string) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	ok, err := s.allowed(ctx, caller, obj, act)
	if err != nil {
		return err
	}
	if !ok {
		return s.deny(caller, act+" "+obj)
	}
	return nil
}

// CreateActionLog records an action. Callers without the write grant may only
// record their own actions; the actor is forced to the caller.
func (s *AuditService) CreateActionLog(ctx context.Context, caller domain.Caller, entry domain.ActionLog) (domain.ActionLog, error) {
	if err := caller.Validate(); err != nil {
		return domain.ActionLog{}, err
	}
	forAnyone, err := s.allowed(ctx, caller, domain.ObjActionLogs, domain.ActWrite)
	if err != nil {
		return domain.ActionLog{}, err
	}
	if !forAnyone {
		own, err := s.allowed(ctx, caller, domain.ObjActionLogs, domain.ActWriteOwn)
		if err != nil {
			return domain.ActionLog{}, err
		}
		if !own || (entry.ActorID != "" && entry.ActorID != caller.ID) {
			return domain.ActionLog{}, s.deny(caller, "write action logs for another actor")
		}
		entry.ActorID = caller.ID
		entry.ActorRole = caller.Role
	}
	if entry.ActorID == caller.ID && entry.ActorRole == "" {
		entry.ActorRole = caller.Role
	}

	if err := entry.Validate(); err != nil {
		return domain.ActionLog{}, err
	}
	if err := s.validator.ActionLog(entry); err != nil {
		return domain.ActionLog{}, err
	}

	written, err := s.store.WriteActionLog(ctx, entry)
	if err != nil {
		return domain.ActionLog{}, err
	}
	s.metrics.ObserveWrite("action_log")
	return written, nil
}

// FindActionLogs is open to moderators and admins. Other roles only see their
// own entries: an empty actor filter is scoped to the caller and any other
// actor id is rejected.
func (s *AuditService) FindActionLogs(ctx context.Context, caller domain.Caller, filter domain.ActionLogFilter) ([]domain.ActionLog, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	all, err := s.allowed(ctx, caller, domain.ObjActionLogs, domain.ActRead)
	if err != nil {
		return nil, err
	}
	if !all {
		own, err := s.allowed(ctx, caller, domain.ObjActionLogs, domain.ActReadOwn)
		if err != nil {
			return nil, err
		}
		if !own || (filter.ActorID != "" && filter.ActorID != caller.ID) {
			return nil, s.deny(caller, "read action logs of another actor")
		}
		filter.ActorID = caller.ID
	}

	filter, err = filter.Normalize()
	if err != nil {
		return nil, err
	}
	return s.store.FindActionLogs(ctx, filter)
}

// CreateSystemEvent always records an open event; resolution goes through
// ResolveSystemEvent.
func (s *AuditService) CreateSystemEvent(ctx context.Context, caller domain.Caller, event domain.SystemEvent) (domain.SystemEvent, error) {
	if err := s.require(ctx, caller, domain.ObjSystemEvents, domain.ActCreate); err != nil {
		return domain.SystemEvent{}, err
	}
	return s.writeSystemEvent(ctx, event)
}

func (s *AuditService) writeSystemEvent(ctx context.Context, event domain.SystemEvent) (domain.SystemEvent, error) {
	event.IsResolved = false
	event.ResolvedAt = nil
	event.ResolvedBy = ""
	event.Resolution = ""

	if err := event.Validate(); err != nil {
		return domain.SystemEvent{}, err
	}
	if err := s.validator.SystemEvent(event); err != nil {
		return domain.SystemEvent{}, err
	}

	written, err := s.store.WriteSystemEvent(ctx, event)
	if err != nil {
		return domain.SystemEvent{}, err
	}
	s.metrics.ObserveWrite("system_event")
	return written, nil
}

func (s *AuditService) FindSystemEvents(ctx context.Context, caller domain.Caller, filter domain.SystemEventFilter) ([]domain.SystemEvent, error) {
	if err := s.require(ctx, caller, domain.ObjSystemEvents, domain.ActRead); err != nil {
		return nil, err
	}
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	return s.store.FindSystemEvents(ctx, filter)
}

func (s *AuditService) CreateDataChangeLog(ctx context.Context, caller domain.Caller, entry domain.DataChangeLog) (domain.DataChangeLog, error) {
	if err := s.require(ctx, caller, domain.ObjDataChangeLogs, domain.ActCreate); err != nil {
		return domain.DataChangeLog{}, err
	}
	entry = entry.WithDefaults()
	if err := entry.Validate(); err != nil {
		return domain.DataChangeLog{}, err
	}
	if err := s.validator.DataChangeLog(entry); err != nil {
		return domain.DataChangeLog{}, err
	}

	written, err := s.store.WriteDataChangeLog(ctx, entry)
	if err != nil {
		return domain.DataChangeLog{}, err
	}
	s.metrics.ObserveWrite("data_change_log")
	return written, nil
}

func (s *AuditService) FindDataChangeLogs(ctx context.Context, caller domain.Caller, filter domain.DataChangeFilter) ([]domain.DataChangeLog, error) {
	if err := s.require(ctx, caller, domain.ObjDataChangeLogs, domain.ActRead); err != nil {
		return nil, err
	}
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	return s.store.FindDataChangeLogs(ctx, filter)
}
