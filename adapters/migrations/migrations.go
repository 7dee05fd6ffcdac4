// Package migrations embeds the leaderboard schema for every supported SQL dialect
// and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql
var files embed.FS

// Dialect names a schema flavour under sql/.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// goose keeps its dialect and base FS in package state.
var gooseMu sync.Mutex

func (d Dialect) gooseDialect() (string, error) {
	switch d {
	case Postgres:
		return "postgres", nil
	case MySQL:
		return "mysql", nil
	case SQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported migration dialect: %s", d)
	}
}

// Up applies all pending migrations for dialect.
func Up(ctx context.Context, db *sql.DB, dialect Dialect) error {
	name, err := dialect.gooseDialect()
	if err != nil {
		return err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(name); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "sql/"+string(dialect)); err != nil {
		return fmt.Errorf("apply %s migrations: %w", dialect, err)
	}
	return nil
}

// Version returns the applied schema version.
func Version(ctx context.Context, db *sql.DB, dialect Dialect) (int64, error) {
	name, err := dialect.gooseDialect()
	if err != nil {
		return 0, err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := goose.SetDialect(name); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
