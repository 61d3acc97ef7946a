// Package stream implements the fixed-ring time-series buffer of
// spec.md §3.5, §4.4: each path owns queue_depth rows, permanently
// allocated by the reconciler, and push overwrites the oldest in place.
package stream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
	"github.com/glenn-edgar/kbcoord/internal/retry"
	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

// Record is one stream_slot row.
type Record struct {
	ID         int64     `db:"id"`
	Path       string    `db:"path"`
	RecordedAt time.Time `db:"recorded_at"`
	Data       jsonb.Map `db:"data"`
}

// Stream is the Postgres-backed ring buffer.
type Stream struct {
	db     *sqlx.DB
	policy retry.Policy
}

func New(db *sqlx.DB) *Stream {
	return &Stream{db: db, policy: retry.DefaultPolicy()}
}

func validatePath(p string) error {
	if _, err := path.Parse(p); err != nil {
		return apperror.NewValueError("invalid stream path").WithDetails(err.Error())
	}
	return nil
}

// Push overwrites the oldest row under path with data and a fresh
// recorded_at (spec.md §4.4). Fails if path has no rows at all (the
// reconciler never created the ring). Retried on lock contention.
func (s *Stream) Push(ctx context.Context, p string, data jsonb.Map) error {
	if err := validatePath(p); err != nil {
		return err
	}
	ctx, end := telemetry.StartOperation(ctx, "stream", "push", p)
	defer end()
	err := retry.Do(ctx, "stream.push", s.policy, func() error {
		return s.pushOnce(ctx, p, data)
	})
	telemetry.RecordError(ctx, err)
	return err
}

func (s *Stream) pushOnce(ctx context.Context, p string, data jsonb.Map) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("stream push begin", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.GetContext(ctx, &id, `
		SELECT id FROM stream_slot
		WHERE path = $1::ltree
		ORDER BY recorded_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, p)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewNoMatchingRecord("stream_slot").WithDetails(p)
	}
	if err != nil {
		return apperror.NewStoreError("stream push select", err).WithDetails(p)
	}

	_, err = tx.ExecContext(ctx, `UPDATE stream_slot SET data = $2, recorded_at = now() WHERE id = $1`, id, data)
	if err != nil {
		return apperror.NewStoreError("stream push update", err).WithDetails(p)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("stream push commit", err).WithDetails(p)
	}
	return nil
}

// ListOptions bounds a range query over recorded_at (spec.md §4.4).
type ListOptions struct {
	After  *time.Time
	Before *time.Time
	Limit  int
	Offset int
}

// List returns rows under path ordered by recorded_at ascending, restricted
// to the [After, Before) window when set.
func (s *Stream) List(ctx context.Context, p string, opts ListOptions) ([]Record, error) {
	if err := validatePath(p); err != nil {
		return nil, err
	}
	query := `
		SELECT id, path::text AS path, recorded_at, data
		FROM stream_slot
		WHERE path = $1::ltree`
	args := []interface{}{p}
	if opts.After != nil {
		args = append(args, *opts.After)
		query += fmt.Sprintf(" AND recorded_at >= $%d", len(args))
	}
	if opts.Before != nil {
		args = append(args, *opts.Before)
		query += fmt.Sprintf(" AND recorded_at < $%d", len(args))
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, opts.Offset)
	query += fmt.Sprintf(" ORDER BY recorded_at ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []Record
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.NewStoreError("stream list", err).WithDetails(p)
	}
	return rows, nil
}
