// Package sqldb provides a database/sql-backed storage.Driver supporting
// SQLite (file or :memory:) and Postgres. Postgres schema is managed by
// embedded goose migrations; SQLite uses an inline schema since the file is
// owned by a single process.
package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Driver implements storage.Driver over database/sql.
type Driver struct {
	db     *sql.DB
	dbName string
	sql    sq.StatementBuilderType
}

// Open connects to the database named by driver ("sqlite3" or "postgres")
// and dsn, verifies connectivity, and optionally migrates the schema.
func Open(ctx context.Context, driver, dsn string, autoMigrate bool) (*Driver, error) {
	driver = normalizeDriver(driver)
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}

	sqlDriver := driver
	if driver == "postgres" {
		sqlDriver = "pgx"
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if autoMigrate {
		switch driver {
		case "postgres":
			goose.SetBaseFS(migrations)
			if err := goose.SetDialect("postgres"); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("set goose dialect: %w", err)
			}
			if err := goose.Up(db, "migrations"); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		case "sqlite3":
			if err := initSQLiteSchema(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("init sqlite schema: %w", err)
			}
		default:
			_ = db.Close()
			return nil, fmt.Errorf("unsupported driver %q", driver)
		}
	}

	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		placeholder = sq.Dollar
	}

	return &Driver{
		db:     db,
		dbName: driver,
		sql:    sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch d {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "pgx", "postgresql":
		return "postgres"
	default:
		return d
	}
}

func initSQLiteSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS model_configs (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	model_identifier TEXT NOT NULL,
	base_url TEXT NOT NULL,
	system_prompt TEXT NOT NULL DEFAULT '',
	secret_ref TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	ordering INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS usage_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	model_identifier TEXT NOT NULL,
	client_message_id TEXT NOT NULL,
	status TEXT NOT NULL,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	total_tokens INTEGER,
	error_code TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	latency_ms INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_usage_log_model ON usage_log(model_identifier);
CREATE INDEX IF NOT EXISTS idx_usage_log_created ON usage_log(created_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("exec sqlite schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (d *Driver) Close() error {
	return d.db.Close()
}
