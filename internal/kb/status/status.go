// Package status implements the status store of spec.md §3.3: one row per
// STATUS registry entry, created and destroyed only by reconciliation.
// Runtime access is plain read/write of the row's data column — no slot
// ring, no claim semantics.
package status

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

// Record is one status_slot row.
type Record struct {
	ID        int64     `db:"id"`
	Path      string    `db:"path"`
	Data      jsonb.Map `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store is the Postgres-backed status accessor.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func validatePath(p string) error {
	if _, err := path.Parse(p); err != nil {
		return apperror.NewValueError("invalid status path").WithDetails(err.Error())
	}
	return nil
}

// Get reads the status row at path. Fails with NoMatchingRecord if the
// reconciler never created one (path is not a registered STATUS entry).
func (s *Store) Get(ctx context.Context, p string) (*Record, error) {
	if err := validatePath(p); err != nil {
		return nil, err
	}
	var rec Record
	err := s.db.GetContext(ctx, &rec, `
		SELECT id, path::text AS path, data, updated_at FROM status_slot WHERE path = $1::ltree`, p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNoMatchingRecord("status_slot").WithDetails(p)
	}
	if err != nil {
		return nil, apperror.NewStoreError("status get", err).WithDetails(p)
	}
	return &rec, nil
}

// Set overwrites the status row's data at path and bumps updated_at.
func (s *Store) Set(ctx context.Context, p string, data jsonb.Map) error {
	if err := validatePath(p); err != nil {
		return err
	}
	ctx, end := telemetry.StartOperation(ctx, "status", "set", p)
	defer end()

	res, err := s.db.ExecContext(ctx, `
		UPDATE status_slot SET data = $2, updated_at = now() WHERE path = $1::ltree`, p, data)
	if err != nil {
		err = apperror.NewStoreError("status set", err).WithDetails(p)
		telemetry.RecordError(ctx, err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		err = apperror.NewStoreError("status set rows affected", err).WithDetails(p)
		telemetry.RecordError(ctx, err)
		return err
	}
	if n == 0 {
		err := apperror.NewNoMatchingRecord("status_slot").WithDetails(p)
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}

// List returns every status row under a registry-wide scan, ordered by
// path, paginated — used by introspection tooling (cmd/kbctl) rather than
// by producers/consumers.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Record, error) {
	var rows []Record
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, path::text AS path, data, updated_at
		FROM status_slot
		ORDER BY path
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperror.NewStoreError("status list", err)
	}
	return rows, nil
}
