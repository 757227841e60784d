package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
)

// RetentionService deletes Action Log entries older than the retention window.
// It is the only deletion path for Action Logs; System Events and Data Change
// Logs are kept indefinitely.
type RetentionService struct {
	store   ports.RetentionStore
	clock   clock.Clock
	metrics ports.Metrics
	log     logrus.FieldLogger
}

func NewRetentionService(store ports.RetentionStore, clk clock.Clock, metrics ports.Metrics, log logrus.FieldLogger) *RetentionService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RetentionService{store: store, clock: clk, metrics: metrics, log: log}
}

// Cleanup removes entries created strictly before now minus retentionDays.
// Callers are trusted; the facade and the scheduler gate access.
func (r *RetentionService) Cleanup(ctx context.Context, retentionDays int) (domain.CleanupResult, error) {
	if retentionDays <= 0 {
		return domain.CleanupResult{}, &domain.ValidationError{Field: "retentionDays", Message: "must be a positive integer"}
	}
	now := r.clock.Now().UTC()
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	deleted, err := r.store.DeleteActionLogsBefore(ctx, cutoff)
	r.metrics.ObserveCleanup(deleted, now, err)
	if err != nil {
		r.log.WithError(err).WithField("retention_days", retentionDays).Error("action log cleanup failed")
		return domain.CleanupResult{}, err
	}

	r.log.WithFields(logrus.Fields{
		"retention_days": retentionDays,
		"cutoff":         cutoff.Format(time.RFC3339),
		"deleted":        deleted,
	}).Info("action log cleanup finished")
	return domain.CleanupResult{DeletedCount: deleted, Cutoff: cutoff}, nil
}

// Cleanup is the admin-only entry point for retention.
func (s *AuditService) Cleanup(ctx context.Context, caller domain.Caller, retentionDays int) (domain.CleanupResult, error) {
	if err := s.require(ctx, caller, domain.ObjRetention, domain.ActCleanup); err != nil {
		return domain.CleanupResult{}, err
	}
	return s.retention.Cleanup(ctx, retentionDays)
}
