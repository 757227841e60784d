package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/events"
	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore"
	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/auditlog/internal/adapters/metrics"
	"github.com/atvirokodosprendimai/auditlog/internal/adapters/rbac"
	"github.com/atvirokodosprendimai/auditlog/internal/config"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
	"github.com/atvirokodosprendimai/auditlog/internal/core/usecase"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
	"github.com/atvirokodosprendimai/auditlog/migrations"
)

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Runtime is the migrated database plus the services built on it. Commands
// that do not serve HTTP use it directly.
type Runtime struct {
	DB        *gormdb.DB
	Store     *gormstore.Store
	Outbox    *gormstore.OutboxRepository
	Enforcer  *rbac.Enforcer
	Audit     *usecase.AuditService
	Retention *usecase.RetentionService
	// Auth is nil when no signing secret is configured.
	Auth    *usecase.AuthService
	Metrics *metrics.Prometheus
	Log     logrus.FieldLogger

	clock clock.Clock
	cfg   *config.Config
}

type RuntimeOption func(*Runtime)

func WithClock(c clock.Clock) RuntimeOption {
	return func(r *Runtime) { r.clock = c }
}

// Open connects to the database, applies migrations and wires the services.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts ...RuntimeOption) (*Runtime, error) {
	rt := &Runtime{Log: log, clock: clock.RealClock{}, cfg: cfg}
	for _, opt := range opts {
		opt(rt)
	}

	db, err := gormdb.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.DB = db

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enforcer, err := rbac.New(db.W, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	validator, err := usecase.NewPayloadValidator()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rt.Enforcer = enforcer
	rt.Metrics = metrics.New()
	rt.Store = gormstore.New(db,
		gormstore.WithClock(rt.clock),
		gormstore.WithUserCacheSize(cfg.Cache.UserLRUSize),
		gormstore.WithLogger(log.WithField("component", "store")),
	)
	rt.Outbox = gormstore.NewOutboxRepository(db, rt.clock)
	rt.Retention = usecase.NewRetentionService(rt.Store, rt.clock, rt.Metrics, log.WithField("component", "retention"))
	rt.Audit = usecase.NewAuditService(rt.Store, rt.Retention, enforcer, validator,
		usecase.WithMetrics(rt.Metrics),
		usecase.WithLogger(log.WithField("component", "audit")),
	)

	if cfg.Auth.JWTSecret != "" {
		auth, err := usecase.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, rt.clock)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.Auth = auth
	}
	return rt, nil
}

func Migrate(ctx context.Context, db *gormdb.DB) error {
	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		return fmt.Errorf("resolve writer sql db: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := migrations.Up(ctx, writeSQLDB, db.Dialect); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (rt *Runtime) Close() error {
	return rt.DB.Close()
}

func (rt *Runtime) PingDB(ctx context.Context) error {
	sqlDB, err := rt.DB.WriteSQLDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// NewDispatcher drains the outbox into publisher using the configured cadence.
func (rt *Runtime) NewDispatcher(publisher ports.EventPublisher) *usecase.OutboxDispatcher {
	return usecase.NewOutboxDispatcher(rt.Outbox, publisher, rt.cfg.Outbox.Interval, rt.cfg.Outbox.BatchSize,
		usecase.WithMaxRetry(rt.cfg.Outbox.MaxRetry),
		usecase.WithDispatcherMetrics(rt.Metrics),
		usecase.WithDispatcherLogger(rt.Log.WithField("component", "outbox")),
		usecase.WithDispatcherClock(rt.clock),
	)
}

type notifier struct {
	publisher ports.EventPublisher
	closers   []io.Closer
	checks    map[string]httpapi.HealthCheck
}

// buildNotifier always logs notifications and adds the webhook and Redis
// routes when they are configured.
func buildNotifier(cfg config.NotifyConfig, log logrus.FieldLogger) (*notifier, error) {
	n := &notifier{checks: map[string]httpapi.HealthCheck{}}
	routes := []events.Route{{Name: "log", Publisher: events.NewLogPublisher(log.WithField("component", "notify"))}}

	if cfg.WebhookURL != "" {
		var minSeverity domain.Severity
		if cfg.WebhookMinSeverity != "" {
			sev, err := domain.ParseSeverity(cfg.WebhookMinSeverity)
			if err != nil {
				return nil, err
			}
			minSeverity = sev
		}
		routes = append(routes, events.Route{
			Name:        "webhook",
			Publisher:   events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret),
			MinSeverity: minSeverity,
		})
	}

	if cfg.RedisURL != "" {
		pub, err := events.NewRedisPublisher(cfg.RedisURL, cfg.RedisStreamPrefix, 0)
		if err != nil {
			return nil, err
		}
		routes = append(routes, events.Route{Name: "redis", Publisher: pub})
		n.closers = append(n.closers, pub)
		n.checks["redis"] = pub.Ping
	}

	n.publisher = events.NewFanoutPublisher(routes...)
	return n, nil
}

func NewServer(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, opts ...RuntimeOption) (*http.Server, io.Closer, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, nil, errors.New("auth.jwt_secret is required to serve")
	}
	proxies, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		return nil, nil, err
	}

	rt, err := Open(ctx, cfg, log, opts...)
	if err != nil {
		return nil, nil, err
	}

	notify, err := buildNotifier(cfg.Notify, log)
	if err != nil {
		_ = rt.Close()
		return nil, nil, fmt.Errorf("notifications: %w", err)
	}

	dispatcher := rt.NewDispatcher(notify.publisher)
	dispatcher.Start(context.Background())

	scheduler, err := startRetentionSchedule(rt, cfg.Retention, log.WithField("component", "scheduler"))
	if err != nil {
		_ = dispatcher.Close()
		_ = resourceCloser{closers: notify.closers}.Close()
		_ = rt.Close()
		return nil, nil, err
	}

	handlerOpts := []httpapi.Option{
		httpapi.WithTrustedProxies(proxies...),
		httpapi.WithLogger(log.WithField("component", "http")),
		httpapi.WithMetrics(rt.Metrics.Handler(), rt.Metrics.Middleware),
		httpapi.WithHealthCheck("database", rt.PingDB),
	}
	for name, check := range notify.checks {
		handlerOpts = append(handlerOpts, httpapi.WithHealthCheck(name, check))
	}
	handler := httpapi.NewHandler(rt.Audit, rt.Auth, handlerOpts...)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	closers := []io.Closer{scheduler, dispatcher}
	closers = append(closers, notify.closers...)
	closers = append(closers, rt)
	return server, resourceCloser{closers: closers}, nil
}
