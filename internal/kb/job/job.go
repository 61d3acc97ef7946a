// Package job implements the fixed-slot job queue of spec.md §3.4, §4.3:
// producers push onto the oldest FREE row, consumers claim the oldest
// PENDING row, and completion cycles a row back to reusable FREE state.
// Row count per path is fixed by the reconciler (internal/kb/reconcile) and
// never changes here.
package job

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
	"github.com/glenn-edgar/kbcoord/internal/retry"
	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

// Record is one job_slot row, per spec.md §3.4.
type Record struct {
	ID          int64        `db:"id"`
	Path        string       `db:"path"`
	ScheduleAt  sql.NullTime `db:"schedule_at"`
	StartedAt   sql.NullTime `db:"started_at"`
	CompletedAt time.Time    `db:"completed_at"`
	IsActive    bool         `db:"is_active"`
	Valid       bool         `db:"valid"`
	Data        jsonb.Map    `db:"data"`
}

// Queue is the Postgres-backed job queue. It holds no in-memory state; every
// operation round-trips to the store under the locking discipline of
// spec.md §5.
type Queue struct {
	db     *sqlx.DB
	policy retry.Policy
}

func New(db *sqlx.DB) *Queue {
	return &Queue{db: db, policy: retry.DefaultPolicy()}
}

func validatePath(p string) error {
	if _, err := path.Parse(p); err != nil {
		return apperror.NewValueError("invalid job path").WithDetails(err.Error())
	}
	return nil
}

// CountPending reports rows in PENDING state under path (spec.md §4.3).
func (q *Queue) CountPending(ctx context.Context, p string) (int, error) {
	return q.countByState(ctx, p, `valid AND NOT is_active`)
}

// CountFree reports rows in FREE state under path.
func (q *Queue) CountFree(ctx context.Context, p string) (int, error) {
	return q.countByState(ctx, p, `NOT valid AND NOT is_active`)
}

func (q *Queue) countByState(ctx context.Context, p, predicate string) (int, error) {
	if err := validatePath(p); err != nil {
		return 0, err
	}
	var n int
	query := `SELECT count(*) FROM job_slot WHERE path = $1::ltree AND ` + predicate
	if err := q.db.GetContext(ctx, &n, query, p); err != nil {
		return 0, apperror.NewStoreError("job count", err).WithDetails(p)
	}
	return n, nil
}

// Push selects the oldest FREE row under path and promotes it to PENDING
// with the caller's data (spec.md §4.3). Fails with QueueFull if none are
// free. Retried on lock contention.
func (q *Queue) Push(ctx context.Context, p string, data jsonb.Map) error {
	if err := validatePath(p); err != nil {
		return err
	}
	ctx, end := telemetry.StartOperation(ctx, "job", "push", p)
	defer end()
	err := retry.Do(ctx, "job.push", q.policy, func() error {
		return q.pushOnce(ctx, p, data)
	})
	telemetry.RecordError(ctx, err)
	return err
}

func (q *Queue) pushOnce(ctx context.Context, p string, data jsonb.Map) error {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("job push begin", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.GetContext(ctx, &id, `
		SELECT id FROM job_slot
		WHERE path = $1::ltree AND NOT valid AND NOT is_active
		ORDER BY completed_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, p)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewQueueFull(p)
	}
	if err != nil {
		return apperror.NewStoreError("job push select", err).WithDetails(p)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE job_slot
		SET valid = true, is_active = false, data = $2,
		    schedule_at = now(), started_at = NULL, completed_at = now()
		WHERE id = $1`, id, data)
	if err != nil {
		return apperror.NewStoreError("job push update", err).WithDetails(p)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("job push commit", err).WithDetails(p)
	}
	return nil
}

// Claim is the return value of Claim.
type Claim struct {
	ID         int64
	Data       jsonb.Map
	ScheduleAt sql.NullTime
}

// Claim selects the oldest PENDING, inactive row under path and marks it
// ACTIVE (spec.md §4.3). Returns (nil, nil) if none are pending — not an
// error. Retried on lock contention.
func (q *Queue) Claim(ctx context.Context, p string) (*Claim, error) {
	if err := validatePath(p); err != nil {
		return nil, err
	}
	ctx, end := telemetry.StartOperation(ctx, "job", "claim", p)
	defer end()
	var claim *Claim
	err := retry.Do(ctx, "job.claim", q.policy, func() error {
		c, err := q.claimOnce(ctx, p)
		if err != nil {
			return err
		}
		claim = c
		return nil
	})
	telemetry.RecordError(ctx, err)
	return claim, err
}

func (q *Queue) claimOnce(ctx context.Context, p string) (*Claim, error) {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperror.NewStoreError("job claim begin", err)
	}
	defer tx.Rollback()

	var row Record
	err = tx.GetContext(ctx, &row, `
		SELECT id, path::text AS path, schedule_at, started_at, completed_at, is_active, valid, data
		FROM job_slot
		WHERE path = $1::ltree AND valid AND NOT is_active
		ORDER BY schedule_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NewStoreError("job claim select", err).WithDetails(p)
	}

	_, err = tx.ExecContext(ctx, `UPDATE job_slot SET is_active = true, started_at = now() WHERE id = $1`, row.ID)
	if err != nil {
		return nil, apperror.NewStoreError("job claim update", err).WithDetails(p)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.NewStoreError("job claim commit", err).WithDetails(p)
	}
	return &Claim{ID: row.ID, Data: row.Data, ScheduleAt: row.ScheduleAt}, nil
}

// Complete marks the row as COMPLETED (spec.md §4.3): `valid=false,
// is_active=false, completed_at=now`. Fails with NoMatchingRecord if id does
// not exist. Retried on lock-not-available.
func (q *Queue) Complete(ctx context.Context, id int64) error {
	ctx, end := telemetry.StartOperation(ctx, "job", "complete", "")
	defer end()
	err := retry.Do(ctx, "job.complete", q.policy, func() error {
		return q.completeOnce(ctx, id)
	})
	telemetry.RecordError(ctx, err)
	return err
}

func (q *Queue) completeOnce(ctx context.Context, id int64) error {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("job complete begin", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, `SELECT true FROM job_slot WHERE id = $1 FOR UPDATE NOWAIT`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewNoMatchingRecord("job_slot").WithDetailsf("id=%d", id)
	}
	if err != nil {
		return apperror.NewStoreError("job complete lock", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE job_slot SET valid = false, is_active = false, completed_at = now() WHERE id = $1`, id)
	if err != nil {
		return apperror.NewStoreError("job complete update", err)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("job complete commit", err)
	}
	return nil
}

// ListPending returns PENDING rows under path ordered by schedule_at
// ascending, paginated.
func (q *Queue) ListPending(ctx context.Context, p string, limit, offset int) ([]Record, error) {
	return q.list(ctx, p, `valid AND NOT is_active`, "schedule_at", limit, offset)
}

// ListActive returns ACTIVE rows under path ordered by started_at ascending.
func (q *Queue) ListActive(ctx context.Context, p string, limit, offset int) ([]Record, error) {
	return q.list(ctx, p, `valid AND is_active`, "started_at", limit, offset)
}

// ListCompleted returns COMPLETED rows under path ordered by completed_at
// ascending.
func (q *Queue) ListCompleted(ctx context.Context, p string, limit, offset int) ([]Record, error) {
	return q.list(ctx, p, `NOT valid AND NOT is_active`, "completed_at", limit, offset)
}

func (q *Queue) list(ctx context.Context, p, predicate, orderCol string, limit, offset int) ([]Record, error) {
	if err := validatePath(p); err != nil {
		return nil, err
	}
	var rows []Record
	query := `
		SELECT id, path::text AS path, schedule_at, started_at, completed_at, is_active, valid, data
		FROM job_slot
		WHERE path = $1::ltree AND ` + predicate + `
		ORDER BY ` + orderCol + ` ASC, id ASC
		LIMIT $2 OFFSET $3`
	if err := q.db.SelectContext(ctx, &rows, query, p, limit, offset); err != nil {
		return nil, apperror.NewStoreError("job list", err).WithDetails(p)
	}
	return rows, nil
}

// Clear resets every row under path to FREE with empty data (spec.md §4.3),
// under an exclusive table lock so no concurrent push/claim observes a
// partially-reset ring.
func (q *Queue) Clear(ctx context.Context, p string) error {
	if err := validatePath(p); err != nil {
		return err
	}
	return retry.Do(ctx, "job.clear", q.policy, func() error {
		return q.clearOnce(ctx, p)
	})
}

func (q *Queue) clearOnce(ctx context.Context, p string) error {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("job clear begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE job_slot IN EXCLUSIVE MODE`); err != nil {
		return apperror.NewStoreError("job clear lock table", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE job_slot
		SET valid = false, is_active = false, schedule_at = NULL, started_at = NULL,
		    completed_at = now(), data = '{}'::jsonb
		WHERE path = $1::ltree`, p)
	if err != nil {
		return apperror.NewStoreError("job clear update", err).WithDetails(p)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("job clear commit", err).WithDetails(p)
	}
	return nil
}

// Free is a supplemented convenience (no spec.md analogue, see
// original_source/'s job-queue helper for releasing an active row back to
// FREE without marking it completed first): used by callers that abandon a
// claimed job rather than finishing it.
func (q *Queue) Free(ctx context.Context, id int64) error {
	return retry.Do(ctx, "job.free", q.policy, func() error {
		return q.freeOnce(ctx, id)
	})
}

func (q *Queue) freeOnce(ctx context.Context, id int64) error {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("job free begin", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.GetContext(ctx, &exists, `SELECT true FROM job_slot WHERE id = $1 FOR UPDATE NOWAIT`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewNoMatchingRecord("job_slot").WithDetailsf("id=%d", id)
	}
	if err != nil {
		return apperror.NewStoreError("job free lock", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE job_slot
		SET valid = false, is_active = false, schedule_at = NULL, started_at = NULL,
		    completed_at = now(), data = '{}'::jsonb
		WHERE id = $1`, id)
	if err != nil {
		return apperror.NewStoreError("job free update", err)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("job free commit", err)
	}
	return nil
}
