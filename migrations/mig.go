package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed files/sqlite/*.sql files/postgres/*.sql
var migrationFS embed.FS

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

// Up applies the embedded migrations for dialect ("sqlite" or "postgres").
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	gooseDialect, dir, err := resolve(dialect)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func resolve(dialect string) (string, string, error) {
	switch dialect {
	case "", "sqlite":
		return "sqlite3", "files/sqlite", nil
	case "postgres":
		return "postgres", "files/postgres", nil
	}
	return "", "", fmt.Errorf("no migrations for dialect %q", dialect)
}
