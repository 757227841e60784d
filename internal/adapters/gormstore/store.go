package gormstore

import (
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
	"github.com/atvirokodosprendimai/auditlog/internal/platform/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultUserCacheSize = 1024

// Store is the GORM-backed Event Store. It assigns ids and creation times and
// enriches actor references from the users table on read.
type Store struct {
	db    *gormdb.DB
	clock clock.Clock
	users *userDirectory
	log   logrus.FieldLogger
}

var (
	_ ports.AuditStore       = (*Store)(nil)
	_ ports.RetentionStore   = (*Store)(nil)
	_ ports.OutboxRepository = (*OutboxRepository)(nil)
)

type Option func(*Store)

func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithUserCacheSize bounds the actor enrichment cache. Zero disables it.
func WithUserCacheSize(n int) Option {
	return func(s *Store) { s.users = newUserDirectory(s.db, n) }
}

func New(db *gormdb.DB, opts ...Option) *Store {
	s := &Store{db: db, clock: clock.RealClock{}, log: logrus.StandardLogger()}
	s.users = newUserDirectory(db, defaultUserCacheSize)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}

func applyWindow(query *gorm.DB, w domain.TimeWindow) *gorm.DB {
	if w.StartDate != nil {
		query = query.Where("created_at >= ?", w.StartDate.UTC())
	}
	if w.EndDate != nil {
		query = query.Where("created_at <= ?", w.EndDate.UTC())
	}
	return query
}

func newestFirst(query *gorm.DB) *gorm.DB {
	return query.Order("created_at DESC").Order("seq DESC")
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
