package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/config"
	"github.com/atvirokodosprendimai/auditlog/internal/core/usecase"
)

const retentionJobTimeout = 10 * time.Minute

// startRetentionSchedule runs cleanup on cfg.Schedule. Days of zero disables
// the job and returns a no-op closer. Failed runs are recorded as system events.
func startRetentionSchedule(rt *Runtime, cfg config.RetentionConfig, log logrus.FieldLogger) (io.Closer, error) {
	if cfg.Days <= 0 {
		log.Info("scheduled retention disabled")
		return closerFunc(func() error { return nil }), nil
	}

	cronLog := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	_, err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), retentionJobTimeout)
		defer cancel()
		if _, err := rt.Retention.Cleanup(ctx, cfg.Days); err != nil {
			recordRetentionFailure(rt.Audit, cfg, err, log)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule retention %q: %w", cfg.Schedule, err)
	}
	c.Start()
	log.WithFields(logrus.Fields{"schedule": cfg.Schedule, "retention_days": cfg.Days}).Info("scheduled retention started")

	return closerFunc(func() error {
		<-c.Stop().Done()
		return nil
	}), nil
}

func recordRetentionFailure(audit *usecase.AuditService, cfg config.RetentionConfig, cause error, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := audit.LogSystemError(ctx, "retention", cause, map[string]any{
		"retentionDays": cfg.Days,
		"schedule":      cfg.Schedule,
	})
	if err != nil {
		log.WithError(err).Warn("record retention failure")
	}
}
