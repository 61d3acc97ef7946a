package store

import (
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/glenn-edgar/kbcoord/internal/migrations"
	"github.com/glenn-edgar/kbcoord/pkg/shared/operr"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver goose runs schema DDL over
)

// Migrate applies every pending migration in internal/migrations/sql using goose over a
// dedicated lib/pq connection. It is intentionally kept separate from the
// pgx-backed runtime pool returned by Connect: migrations run once at
// process startup (cmd/kbcoordd) and never compete with steady-state
// traffic for pool slots.
func Migrate(cfg *Config) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return operr.New("open migration connection", "store", err).WithResource(cfg.Database)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return operr.New("set goose dialect", "store", err)
	}
	if err := goose.Up(db, migrations.Dir); err != nil {
		return operr.New("run migrations", "store", err).WithResource(cfg.Database)
	}
	return nil
}
