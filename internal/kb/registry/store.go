package registry

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/retry"
)

// Store persists registry entries. It is the only writer the Builder talks
// to; the Reconciler (internal/kb/reconcile) is the only reader besides the
// query façade (internal/kb/query).
type Store interface {
	Insert(ctx context.Context, e Entry) (int64, error)
	PathExists(ctx context.Context, dottedPath string) (bool, error)
	DeleteAll(ctx context.Context) error
	ListByKind(ctx context.Context, kind Kind) ([]Entry, error)
	ListAll(ctx context.Context) ([]Entry, error)
}

// PGStore is the Postgres-backed Store implementation, grounded on the
// registry schema of spec.md §6.2 (migrations/sql/0001_init.sql).
type PGStore struct {
	db *sqlx.DB
}

func NewPGStore(db *sqlx.DB) *PGStore {
	return &PGStore{db: db}
}

const insertSQL = `
INSERT INTO registry (kind, name, properties, data, path)
VALUES ($1, $2, $3, $4, $5::ltree)
RETURNING id`

func (s *PGStore) Insert(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, insertSQL, e.Kind, e.Name, e.Properties, e.Data, e.Path).Scan(&id)
	if err != nil {
		if retry.IsUniqueViolation(err) {
			return 0, apperror.NewInstallationFailed("duplicate registry path", err).WithDetails(e.Path)
		}
		return 0, apperror.NewStoreError("registry insert", err)
	}
	return id, nil
}

func (s *PGStore) PathExists(ctx context.Context, dottedPath string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM registry WHERE path = $1::ltree)`, dottedPath)
	if err != nil {
		return false, apperror.NewStoreError("registry path lookup", err)
	}
	return exists, nil
}

func (s *PGStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM registry`)
	if err != nil {
		return apperror.NewStoreError("registry delete all", err)
	}
	return nil
}

const selectColumns = `id, kind, name, properties, data, path::text AS path`

func (s *PGStore) ListByKind(ctx context.Context, kind Kind) ([]Entry, error) {
	var rows []Entry
	err := s.db.SelectContext(ctx, &rows, `SELECT `+selectColumns+` FROM registry WHERE kind = $1 ORDER BY path`, kind)
	if err != nil {
		return nil, apperror.NewStoreError("registry list by kind", err)
	}
	return rows, nil
}

func (s *PGStore) ListAll(ctx context.Context) ([]Entry, error) {
	var rows []Entry
	err := s.db.SelectContext(ctx, &rows, `SELECT `+selectColumns+` FROM registry ORDER BY path`)
	if err != nil {
		return nil, apperror.NewStoreError("registry list all", err)
	}
	return rows, nil
}

// ErrBuilderStackNotEmpty is wrapped into an InstallationFailed AppError by
// CheckInstallation (spec.md §4.1, §9).
var ErrBuilderStackNotEmpty = errors.New("builder path stack is not empty")
