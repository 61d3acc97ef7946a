package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/glenn-edgar/kbcoord/pkg/shared/operr"
)

// Connect opens the runtime connection pool used by every kb package. It
// runs over jackc/pgx/v5's database/sql shim so the rest of the codebase can
// keep using jmoiron/sqlx's ergonomic scanning while still reaching pgx-only
// facilities (pgconn.PgError classification, LISTEN-free advisory locks)
// through sqlx's underlying *sql.DB.
func Connect(ctx context.Context, cfg *Config) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, operr.New("validate config", "store", err).WithResource(cfg.Database)
	}
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, operr.New("connect", "store", err).WithResource(cfg.Database)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db, nil
}
