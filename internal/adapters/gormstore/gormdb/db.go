package gormdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB splits reads and writes across two pools. For SQLite the writer is a
// single connection and the reader pool is query_only.
type DB struct {
	R       *gorm.DB
	W       *gorm.DB
	Dialect string
}

type Tx struct {
	*gorm.DB
}

type cbfn func(tx *Tx) error

func (db *DB) ReadTX(ctx context.Context, fn cbfn) error {
	return db.R.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	}, &sql.TxOptions{ReadOnly: true})
}

func (db *DB) WriteTX(ctx context.Context, fn cbfn) error {
	return db.W.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	})
}

func (db *DB) WriteSQLDB() (*sql.DB, error) {
	return db.W.DB()
}

func (db *DB) Close() error {
	var firstErr error
	closeOne := func(g *gorm.DB) {
		if err := closeGORM(g); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closeOne(db.R)
	closeOne(db.W)
	return firstErr
}

var _ io.Closer = (*DB)(nil)

// Open connects to the configured driver: "sqlite" takes a file path,
// "postgres" a libpq/pgx connection string.
func Open(driver, dsn string) (*DB, error) {
	switch strings.ToLower(driver) {
	case "", DialectSQLite:
		return OpenSQLite(dsn)
	case DialectPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func OpenSQLite(file string) (*DB, error) {
	reader, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: buildDSN(file, true)}, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open read db: %w", err)
	}

	writer, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: buildDSN(file, false)}, gormConfig())
	if err != nil {
		_ = closeGORM(reader)
		return nil, fmt.Errorf("open write db: %w", err)
	}

	rdb, err := reader.DB()
	if err != nil {
		_ = closeGORM(reader)
		_ = closeGORM(writer)
		return nil, fmt.Errorf("reader sql db: %w", err)
	}
	wdb, err := writer.DB()
	if err != nil {
		_ = closeGORM(reader)
		_ = closeGORM(writer)
		return nil, fmt.Errorf("writer sql db: %w", err)
	}

	rdb.SetMaxOpenConns(runtime.NumCPU())
	rdb.SetMaxIdleConns(runtime.NumCPU())
	rdb.SetConnMaxLifetime(0)
	rdb.SetConnMaxIdleTime(0)

	wdb.SetMaxOpenConns(1)
	wdb.SetMaxIdleConns(1)
	wdb.SetConnMaxLifetime(0)
	wdb.SetConnMaxIdleTime(0)

	return &DB{R: reader, W: writer, Dialect: DialectSQLite}, nil
}

func OpenPostgres(dsn string) (*DB, error) {
	reader, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open read db: %w", err)
	}
	writer, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		_ = closeGORM(reader)
		return nil, fmt.Errorf("open write db: %w", err)
	}

	for _, g := range []*gorm.DB{reader, writer} {
		sqlDB, err := g.DB()
		if err != nil {
			_ = closeGORM(reader)
			_ = closeGORM(writer)
			return nil, fmt.Errorf("postgres sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	return &DB{R: reader, W: writer, Dialect: DialectPostgres}, nil
}

// buildDSN sets pragmas per connection so every pooled connection gets them,
// and pins the time format so stored timestamps compare lexically.
func buildDSN(file string, readOnly bool) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
		"wal_autocheckpoint(1000)",
		"cache_size(-20000)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
		"trusted_schema(OFF)",
	}
	if readOnly {
		pragmas = append(pragmas, "query_only(1)")
	} else {
		pragmas = append(pragmas, "query_only(0)")
	}

	params := make([]string, 0, len(pragmas)+1)
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_time_format=sqlite")

	sep := "?"
	if strings.Contains(file, "?") {
		sep = "&"
	}
	return file + sep + strings.Join(params, "&")
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt: true,
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Silent,
				IgnoreRecordNotFoundError: true,
				ParameterizedQueries:      true,
				Colorful:                  false,
			},
		),
	}
}

func closeGORM(g *gorm.DB) error {
	if g == nil {
		return nil
	}
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
