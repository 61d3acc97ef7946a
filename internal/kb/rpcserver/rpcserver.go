// Package rpcserver implements the RPC server inbox of spec.md §3.6, §4.5:
// a per-server-path ring of slots cycling empty -> new_job -> processing ->
// empty, admitted under a transaction-scoped advisory lock and serializable
// isolation, grounded on the original source's push_rpc_queue/PeakServerQueue
// locking discipline (hash/fnv advisory-lock key, SET TRANSACTION ISOLATION
// LEVEL SERIALIZABLE, FOR UPDATE SKIP LOCKED).
package rpcserver

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
	"github.com/glenn-edgar/kbcoord/internal/retry"
	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

// State is one of the three values spec.md §3.6's state machine allows.
type State string

const (
	StateEmpty      State = "empty"
	StateNewJob     State = "new_job"
	StateProcessing State = "processing"
)

func validState(s State) bool {
	switch s {
	case StateEmpty, StateNewJob, StateProcessing:
		return true
	default:
		return false
	}
}

// Record is one rpc_server_slot row.
type Record struct {
	ID                  int64          `db:"id"`
	ServerPath          string         `db:"server_path"`
	RequestID           uuid.UUID      `db:"request_id"`
	RPCAction           string         `db:"rpc_action"`
	RequestPayload      jsonb.Map      `db:"request_payload"`
	RequestTimestamp    time.Time      `db:"request_timestamp"`
	TransactionTag      string         `db:"transaction_tag"`
	State               string         `db:"state"`
	Priority            int            `db:"priority"`
	ProcessingTimestamp sql.NullTime   `db:"processing_timestamp"`
	CompletedTimestamp  sql.NullTime   `db:"completed_timestamp"`
	RPCClientQueue      sql.NullString `db:"rpc_client_queue"`
}

// Inbox is the Postgres-backed RPC server inbox.
type Inbox struct {
	db     *sqlx.DB
	policy retry.Policy
}

func New(db *sqlx.DB) *Inbox {
	return &Inbox{db: db, policy: retry.DefaultPolicy()}
}

func validatePath(p string) error {
	if _, err := path.Parse(p); err != nil {
		return apperror.NewValueError("invalid server path").WithDetails(err.Error())
	}
	return nil
}

// advisoryLockKey hashes "rpc_server_table:"+serverPath into the 64-bit
// integer pg_advisory_xact_lock expects (spec.md §5).
func advisoryLockKey(serverPath string) int64 {
	h := fnv.New64a()
	h.Write([]byte("rpc_server_table:" + serverPath))
	return int64(h.Sum64())
}

// PushRequest bundles Push's arguments, per spec.md §4.5.
type PushRequest struct {
	ServerPath     string
	RequestID      uuid.UUID
	RPCAction      string
	Payload        jsonb.Map
	TransactionTag string
	Priority       int
	RPCClientQueue *string
}

func (r PushRequest) validate() error {
	if err := validatePath(r.ServerPath); err != nil {
		return err
	}
	if r.TransactionTag == "" {
		return apperror.NewValueError("transaction_tag must be non-empty")
	}
	if r.RPCClientQueue != nil {
		if err := validatePath(*r.RPCClientQueue); err != nil {
			return apperror.NewValueError("rpc_client_queue must be a valid path or nil")
		}
	}
	return nil
}

// Push admits one request into the highest-priority / oldest empty slot
// under server_path (spec.md §4.5). Fails with NoSlotAvailable if none are
// empty. Runs under a per-path advisory lock and serializable isolation;
// serialization failures are retried with exponential backoff.
func (in *Inbox) Push(ctx context.Context, req PushRequest) (*Record, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}

	ctx, end := telemetry.StartOperation(ctx, "rpcserver", "push", req.ServerPath)
	defer end()

	var rec *Record
	err := retry.Do(ctx, "rpcserver.push", in.policy, func() error {
		r, err := in.pushOnce(ctx, req)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	telemetry.RecordError(ctx, err)
	return rec, err
}

func (in *Inbox) pushOnce(ctx context.Context, req PushRequest) (*Record, error) {
	tx, err := in.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, apperror.NewStoreError("rpc server push begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey(req.ServerPath)); err != nil {
		return nil, apperror.NewStoreError("rpc server push advisory lock", err).WithDetails(req.ServerPath)
	}

	var id int64
	err = tx.GetContext(ctx, &id, `
		SELECT id FROM rpc_server_slot
		WHERE server_path = $1::ltree AND state = 'empty'
		ORDER BY priority DESC, request_timestamp ASC
		LIMIT 1
		FOR UPDATE`, req.ServerPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNoSlotAvailable(req.ServerPath)
	}
	if err != nil {
		return nil, apperror.NewStoreError("rpc server push select", err).WithDetails(req.ServerPath)
	}

	var rec Record
	err = tx.GetContext(ctx, &rec, `
		UPDATE rpc_server_slot
		SET request_id = $2, rpc_action = $3, request_payload = $4, transaction_tag = $5,
		    priority = $6, rpc_client_queue = $7, state = 'new_job',
		    request_timestamp = now(), completed_timestamp = NULL
		WHERE id = $1
		RETURNING id, server_path::text AS server_path, request_id, rpc_action, request_payload,
		          request_timestamp, transaction_tag, state, priority,
		          processing_timestamp, completed_timestamp, rpc_client_queue::text AS rpc_client_queue`,
		id, req.RequestID, req.RPCAction, req.Payload, req.TransactionTag, req.Priority, req.RPCClientQueue)
	if retry.IsUniqueViolation(err) {
		return nil, apperror.NewValueError("transaction_tag already admitted for this server_path").WithDetails(req.TransactionTag)
	}
	if err != nil {
		return nil, apperror.NewStoreError("rpc server push update", err).WithDetails(req.ServerPath)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.NewStoreError("rpc server push commit", err).WithDetails(req.ServerPath)
	}
	return &rec, nil
}

// Peek selects the highest-priority / oldest new_job row under server_path
// and transitions it to processing (spec.md §4.5). Returns (nil, nil) if
// none are pending. Retried on serialization/deadlock.
func (in *Inbox) Peek(ctx context.Context, serverPath string) (*Record, error) {
	if err := validatePath(serverPath); err != nil {
		return nil, err
	}
	var rec *Record
	err := retry.Do(ctx, "rpcserver.peek", in.policy, func() error {
		r, err := in.peekOnce(ctx, serverPath)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

func (in *Inbox) peekOnce(ctx context.Context, serverPath string) (*Record, error) {
	tx, err := in.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, apperror.NewStoreError("rpc server peek begin", err)
	}
	defer tx.Rollback()

	var rec Record
	err = tx.GetContext(ctx, &rec, `
		SELECT id, server_path::text AS server_path, request_id, rpc_action, request_payload,
		       request_timestamp, transaction_tag, state, priority,
		       processing_timestamp, completed_timestamp, rpc_client_queue::text AS rpc_client_queue
		FROM rpc_server_slot
		WHERE server_path = $1::ltree AND state = 'new_job'
		ORDER BY priority DESC, request_timestamp ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, serverPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NewStoreError("rpc server peek select", err).WithDetails(serverPath)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rpc_server_slot SET state = 'processing', processing_timestamp = now() WHERE id = $1`, rec.ID)
	if err != nil {
		return nil, apperror.NewStoreError("rpc server peek update", err).WithDetails(serverPath)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperror.NewStoreError("rpc server peek commit", err).WithDetails(serverPath)
	}
	rec.State = string(StateProcessing)
	return &rec, nil
}

// Complete transitions the row id back to empty if it belongs to
// server_path and is currently processing (spec.md §4.5). Returns
// NoMatchingRecord otherwise. Retried on serialization/deadlock.
func (in *Inbox) Complete(ctx context.Context, serverPath string, id int64) error {
	if err := validatePath(serverPath); err != nil {
		return err
	}
	ctx, end := telemetry.StartOperation(ctx, "rpcserver", "complete", serverPath)
	defer end()
	err := retry.Do(ctx, "rpcserver.complete", in.policy, func() error {
		return in.completeOnce(ctx, serverPath, id)
	})
	telemetry.RecordError(ctx, err)
	return err
}

func (in *Inbox) completeOnce(ctx context.Context, serverPath string, id int64) error {
	tx, err := in.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return apperror.NewStoreError("rpc server complete begin", err)
	}
	defer tx.Rollback()

	var state string
	err = tx.GetContext(ctx, &state, `
		SELECT state FROM rpc_server_slot
		WHERE id = $1 AND server_path = $2::ltree
		FOR UPDATE`, id, serverPath)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewNoMatchingRecord("rpc_server_slot").WithDetailsf("id=%d server_path=%s", id, serverPath)
	}
	if err != nil {
		return apperror.NewStoreError("rpc server complete lock", err).WithDetails(serverPath)
	}
	if state != string(StateProcessing) {
		return apperror.NewNoMatchingRecord("rpc_server_slot").WithDetailsf("id=%d not in processing state (got %s)", id, state)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rpc_server_slot SET state = 'empty', completed_timestamp = now() WHERE id = $1`, id)
	if err != nil {
		return apperror.NewStoreError("rpc server complete update", err).WithDetails(serverPath)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("rpc server complete commit", err).WithDetails(serverPath)
	}
	return nil
}

// CountByState reports the number of rows under server_path in state.
func (in *Inbox) CountByState(ctx context.Context, serverPath string, state State) (int, error) {
	if err := validatePath(serverPath); err != nil {
		return 0, err
	}
	if !validState(state) {
		return 0, apperror.NewValueError("unknown rpc server state").WithDetails(string(state))
	}
	var n int
	err := in.db.GetContext(ctx, &n, `
		SELECT count(*) FROM rpc_server_slot WHERE server_path = $1::ltree AND state = $2`, serverPath, state)
	if err != nil {
		return 0, apperror.NewStoreError("rpc server count by state", err).WithDetails(serverPath)
	}
	return n, nil
}

// ListByState is read-only introspection, ordered by priority desc then
// request_timestamp asc (spec.md §4.5).
func (in *Inbox) ListByState(ctx context.Context, serverPath string, state State, limit, offset int) ([]Record, error) {
	if err := validatePath(serverPath); err != nil {
		return nil, err
	}
	if !validState(state) {
		return nil, apperror.NewValueError("unknown rpc server state").WithDetails(string(state))
	}
	var rows []Record
	err := in.db.SelectContext(ctx, &rows, `
		SELECT id, server_path::text AS server_path, request_id, rpc_action, request_payload,
		       request_timestamp, transaction_tag, state, priority,
		       processing_timestamp, completed_timestamp, rpc_client_queue::text AS rpc_client_queue
		FROM rpc_server_slot
		WHERE server_path = $1::ltree AND state = $2
		ORDER BY priority DESC, request_timestamp ASC
		LIMIT $3 OFFSET $4`, serverPath, state, limit, offset)
	if err != nil {
		return nil, apperror.NewStoreError("rpc server list by state", err).WithDetails(serverPath)
	}
	return rows, nil
}

// Clear resets every row under server_path to its default empty state
// (spec.md §4.5). Retried on lock contention.
func (in *Inbox) Clear(ctx context.Context, serverPath string) error {
	if err := validatePath(serverPath); err != nil {
		return err
	}
	return retry.Do(ctx, "rpcserver.clear", in.policy, func() error {
		return in.clearOnce(ctx, serverPath)
	})
}

func (in *Inbox) clearOnce(ctx context.Context, serverPath string) error {
	tx, err := in.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("rpc server clear begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE rpc_server_slot
		SET state = 'empty', request_id = gen_random_uuid(), rpc_action = '', request_payload = '{}'::jsonb,
		    transaction_tag = '', priority = 0, processing_timestamp = NULL, completed_timestamp = NULL,
		    rpc_client_queue = NULL, request_timestamp = now()
		WHERE server_path = $1::ltree`, serverPath)
	if err != nil {
		return apperror.NewStoreError("rpc server clear update", err).WithDetails(serverPath)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("rpc server clear commit", err).WithDetails(serverPath)
	}
	return nil
}
