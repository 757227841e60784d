package usecase

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
)

type stubStore struct {
	writeActionLogFn     func(context.Context, domain.ActionLog) (domain.ActionLog, error)
	writeSystemEventFn   func(context.Context, domain.SystemEvent) (domain.SystemEvent, error)
	writeDataChangeFn    func(context.Context, domain.DataChangeLog) (domain.DataChangeLog, error)
	findActionLogsFn     func(context.Context, domain.ActionLogFilter) ([]domain.ActionLog, error)
	findSystemEventsFn   func(context.Context, domain.SystemEventFilter) ([]domain.SystemEvent, error)
	findDataChangeLogsFn func(context.Context, domain.DataChangeFilter) ([]domain.DataChangeLog, error)
	resolveFn            func(context.Context, domain.Resolution) (domain.SystemEvent, error)
	statisticsFn         func(context.Context, domain.TimeWindow) (domain.Statistics, error)
	deleteBeforeFn       func(context.Context, time.Time) (int64, error)

	calls int
}

func (s *stubStore) WriteActionLog(ctx context.Context, entry domain.ActionLog) (domain.ActionLog, error) {
	s.calls++
	if s.writeActionLogFn != nil {
		return s.writeActionLogFn(ctx, entry)
	}
	entry.ID = "al-1"
	return entry, nil
}

func (s *stubStore) WriteSystemEvent(ctx context.Context, event domain.SystemEvent) (domain.SystemEvent, error) {
	s.calls++
	if s.writeSystemEventFn != nil {
		return s.writeSystemEventFn(ctx, event)
	}
	event.ID = "se-1"
	return event, nil
}

func (s *stubStore) WriteDataChangeLog(ctx context.Context, entry domain.DataChangeLog) (domain.DataChangeLog, error) {
	s.calls++
	if s.writeDataChangeFn != nil {
		return s.writeDataChangeFn(ctx, entry)
	}
	entry.ID = "dc-1"
	return entry, nil
}

func (s *stubStore) FindActionLogs(ctx context.Context, filter domain.ActionLogFilter) ([]domain.ActionLog, error) {
	s.calls++
	if s.findActionLogsFn != nil {
		return s.findActionLogsFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubStore) FindSystemEvents(ctx context.Context, filter domain.SystemEventFilter) ([]domain.SystemEvent, error) {
	s.calls++
	if s.findSystemEventsFn != nil {
		return s.findSystemEventsFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubStore) FindDataChangeLogs(ctx context.Context, filter domain.DataChangeFilter) ([]domain.DataChangeLog, error) {
	s.calls++
	if s.findDataChangeLogsFn != nil {
		return s.findDataChangeLogsFn(ctx, filter)
	}
	return nil, nil
}

func (s *stubStore) ResolveSystemEvent(ctx context.Context, res domain.Resolution) (domain.SystemEvent, error) {
	s.calls++
	if s.resolveFn != nil {
		return s.resolveFn(ctx, res)
	}
	return domain.SystemEvent{ID: res.EventID, IsResolved: true, ResolvedBy: res.ResolvedBy, Resolution: res.Resolution}, nil
}

func (s *stubStore) ActionLogStatistics(ctx context.Context, window domain.TimeWindow) (domain.Statistics, error) {
	s.calls++
	if s.statisticsFn != nil {
		return s.statisticsFn(ctx, window)
	}
	return domain.Statistics{}, nil
}

func (s *stubStore) DeleteActionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.calls++
	if s.deleteBeforeFn != nil {
		return s.deleteBeforeFn(ctx, cutoff)
	}
	return 0, nil
}

// policyStub grants the role matrix the production policy encodes.
type policyStub struct {
	err error
}

var stubGrants = map[domain.Role][]string{
	domain.RoleClient:    {"action_logs/read_own", "action_logs/write_own"},
	domain.RoleTherapist: {"action_logs/read_own", "action_logs/write_own"},
	domain.RoleModerator: {"action_logs/read_own", "action_logs/write_own", "action_logs/read", "system_events/read"},
	domain.RoleAdmin: {
		"action_logs/read_own", "action_logs/write_own", "action_logs/read", "action_logs/write",
		"system_events/read", "system_events/create", "system_events/resolve",
		"data_change_logs/read", "data_change_logs/create", "statistics/read", "retention/cleanup",
	},
}

func (p policyStub) Authorize(_ context.Context, role domain.Role, obj, act string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	for _, grant := range stubGrants[role] {
		if grant == obj+"/"+act {
			return true, nil
		}
	}
	return false, nil
}

type metricsSpy struct {
	NopMetrics
	writes   []string
	denied   []string
	resolves []string
	cleanups []int64
	outbox   []string
}

func (m *metricsSpy) ObserveWrite(kind string)     { m.writes = append(m.writes, kind) }
func (m *metricsSpy) ObserveDenied(op string)      { m.denied = append(m.denied, op) }
func (m *metricsSpy) ObserveResolve(result string) { m.resolves = append(m.resolves, result) }
func (m *metricsSpy) ObserveCleanup(deleted int64, _ time.Time, _ error) {
	m.cleanups = append(m.cleanups, deleted)
}
func (m *metricsSpy) ObserveOutboxDispatch(result string) { m.outbox = append(m.outbox, result) }
