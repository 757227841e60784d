package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

// EventStore persists and queries the three audit record kinds.
type EventStore interface {
	WriteActionLog(ctx context.Context, entry domain.ActionLog) (domain.ActionLog, error)
	WriteSystemEvent(ctx context.Context, event domain.SystemEvent) (domain.SystemEvent, error)
	WriteDataChangeLog(ctx context.Context, entry domain.DataChangeLog) (domain.DataChangeLog, error)

	FindActionLogs(ctx context.Context, filter domain.ActionLogFilter) ([]domain.ActionLog, error)
	FindSystemEvents(ctx context.Context, filter domain.SystemEventFilter) ([]domain.SystemEvent, error)
	FindDataChangeLogs(ctx context.Context, filter domain.DataChangeFilter) ([]domain.DataChangeLog, error)
}

type SystemEventResolver interface {
	// ResolveSystemEvent returns domain.ErrNotFound for an unknown id and
	// domain.ErrAlreadyResolved when the event is no longer open.
	ResolveSystemEvent(ctx context.Context, res domain.Resolution) (domain.SystemEvent, error)
}

type StatisticsReader interface {
	ActionLogStatistics(ctx context.Context, window domain.TimeWindow) (domain.Statistics, error)
}

type RetentionStore interface {
	DeleteActionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore is everything the facade needs from storage.
type AuditStore interface {
	EventStore
	SystemEventResolver
	StatisticsReader
}
