// Package rpcclient implements the RPC client reply inbox of spec.md §3.7,
// §4.6: a per-client-path ring of slots toggling FREE/QUEUED as replies
// arrive and are consumed.
package rpcclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
	"github.com/glenn-edgar/kbcoord/internal/retry"
	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

// Record is one rpc_client_slot row.
type Record struct {
	ID                 int64     `db:"id"`
	RequestID          uuid.UUID `db:"request_id"`
	ClientPath         string    `db:"client_path"`
	ServerPath         string    `db:"server_path"`
	RPCAction          string    `db:"rpc_action"`
	TransactionTag     string    `db:"transaction_tag"`
	ResponsePayload    jsonb.Map `db:"response_payload"`
	ResponseTimestamp  time.Time `db:"response_timestamp"`
	IsNewResult        bool      `db:"is_new_result"`
}

// Inbox is the Postgres-backed RPC client reply inbox.
type Inbox struct {
	db     *sqlx.DB
	policy retry.Policy
}

func New(db *sqlx.DB) *Inbox {
	return &Inbox{db: db, policy: retry.DefaultPolicy()}
}

func validatePath(p string) error {
	if _, err := path.Parse(p); err != nil {
		return apperror.NewValueError("invalid client path").WithDetails(err.Error())
	}
	return nil
}

// CountFree reports rows with is_new_result=false under client_path.
func (in *Inbox) CountFree(ctx context.Context, clientPath string) (int, error) {
	return in.countByResult(ctx, clientPath, false)
}

// CountQueued reports rows with is_new_result=true under client_path.
func (in *Inbox) CountQueued(ctx context.Context, clientPath string) (int, error) {
	return in.countByResult(ctx, clientPath, true)
}

func (in *Inbox) countByResult(ctx context.Context, clientPath string, isNew bool) (int, error) {
	if err := validatePath(clientPath); err != nil {
		return 0, err
	}
	var n int
	err := in.db.GetContext(ctx, &n, `
		SELECT count(*) FROM rpc_client_slot WHERE client_path = $1::ltree AND is_new_result = $2`, clientPath, isNew)
	if err != nil {
		return 0, apperror.NewStoreError("rpc client count", err).WithDetails(clientPath)
	}
	return n, nil
}

// PushReply writes a server's reply into the oldest FREE row under
// client_path and marks it QUEUED (spec.md §4.6). Fails with
// ReplyInboxFull if none are free. Retried on transient errors.
func (in *Inbox) PushReply(ctx context.Context, clientPath string, requestID uuid.UUID, serverPath, rpcAction, transactionTag string, payload jsonb.Map) error {
	if err := validatePath(clientPath); err != nil {
		return err
	}
	if err := validatePath(serverPath); err != nil {
		return err
	}
	ctx, end := telemetry.StartOperation(ctx, "rpcclient", "push_reply", clientPath)
	defer end()
	err := retry.Do(ctx, "rpcclient.push_reply", in.policy, func() error {
		return in.pushReplyOnce(ctx, clientPath, requestID, serverPath, rpcAction, transactionTag, payload)
	})
	telemetry.RecordError(ctx, err)
	return err
}

func (in *Inbox) pushReplyOnce(ctx context.Context, clientPath string, requestID uuid.UUID, serverPath, rpcAction, transactionTag string, payload jsonb.Map) error {
	tx, err := in.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("rpc client push_reply begin", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.GetContext(ctx, &id, `
		SELECT id FROM rpc_client_slot
		WHERE client_path = $1::ltree AND NOT is_new_result
		ORDER BY response_timestamp ASC, id ASC
		LIMIT 1
		FOR UPDATE NOWAIT`, clientPath)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NewReplyInboxFull(clientPath)
	}
	if err != nil {
		return apperror.NewStoreError("rpc client push_reply select", err).WithDetails(clientPath)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE rpc_client_slot
		SET request_id = $2, server_path = $3, rpc_action = $4, transaction_tag = $5,
		    response_payload = $6, response_timestamp = now(), is_new_result = true
		WHERE id = $1`, id, requestID, serverPath, rpcAction, transactionTag, payload)
	if err != nil {
		return apperror.NewStoreError("rpc client push_reply update", err).WithDetails(clientPath)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("rpc client push_reply commit", err).WithDetails(clientPath)
	}
	return nil
}

// PeekReply reads the oldest QUEUED row under client_path without
// consuming it — the transaction is rolled back regardless of outcome
// (spec.md §4.6). Returns (nil, nil) if none are queued.
func (in *Inbox) PeekReply(ctx context.Context, clientPath string) (*Record, error) {
	if err := validatePath(clientPath); err != nil {
		return nil, err
	}
	var rec *Record
	err := retry.Do(ctx, "rpcclient.peek_reply", in.policy, func() error {
		r, err := in.peekReplyOnce(ctx, clientPath)
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	return rec, err
}

func (in *Inbox) peekReplyOnce(ctx context.Context, clientPath string) (*Record, error) {
	tx, err := in.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperror.NewStoreError("rpc client peek_reply begin", err)
	}
	defer tx.Rollback()

	var rec Record
	err = tx.GetContext(ctx, &rec, `
		SELECT id, request_id, client_path::text AS client_path, server_path::text AS server_path,
		       rpc_action, transaction_tag, response_payload, response_timestamp, is_new_result
		FROM rpc_client_slot
		WHERE client_path = $1::ltree AND is_new_result
		ORDER BY response_timestamp ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, clientPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NewStoreError("rpc client peek_reply select", err).WithDetails(clientPath)
	}
	return &rec, nil
}

// Release clears the QUEUED flag on id if it belongs to client_path and is
// currently queued (spec.md §4.6); otherwise returns false. Retried on
// lock-not-available.
func (in *Inbox) Release(ctx context.Context, clientPath string, id int64) (bool, error) {
	if err := validatePath(clientPath); err != nil {
		return false, err
	}
	var released bool
	err := retry.Do(ctx, "rpcclient.release", in.policy, func() error {
		r, err := in.releaseOnce(ctx, clientPath, id)
		if err != nil {
			return err
		}
		released = r
		return nil
	})
	return released, err
}

func (in *Inbox) releaseOnce(ctx context.Context, clientPath string, id int64) (bool, error) {
	tx, err := in.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, apperror.NewStoreError("rpc client release begin", err)
	}
	defer tx.Rollback()

	var isNew bool
	err = tx.GetContext(ctx, &isNew, `
		SELECT is_new_result FROM rpc_client_slot
		WHERE id = $1 AND client_path = $2::ltree
		FOR UPDATE NOWAIT`, id, clientPath)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperror.NewStoreError("rpc client release lock", err).WithDetails(clientPath)
	}
	if !isNew {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `UPDATE rpc_client_slot SET is_new_result = false WHERE id = $1`, id)
	if err != nil {
		return false, apperror.NewStoreError("rpc client release update", err).WithDetails(clientPath)
	}
	if err := tx.Commit(); err != nil {
		return false, apperror.NewStoreError("rpc client release commit", err).WithDetails(clientPath)
	}
	return true, nil
}

// Clear resets every row under client_path to FREE (spec.md §4.6): fresh
// request_id, server_path defaulted back to client_path, empty payload.
// Retried on lock contention.
func (in *Inbox) Clear(ctx context.Context, clientPath string) error {
	if err := validatePath(clientPath); err != nil {
		return err
	}
	return retry.Do(ctx, "rpcclient.clear", in.policy, func() error {
		return in.clearOnce(ctx, clientPath)
	})
}

func (in *Inbox) clearOnce(ctx context.Context, clientPath string) error {
	tx, err := in.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperror.NewStoreError("rpc client clear begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE rpc_client_slot
		SET is_new_result = false, request_id = gen_random_uuid(), server_path = client_path,
		    rpc_action = '', transaction_tag = '', response_payload = '{}'::jsonb, response_timestamp = now()
		WHERE client_path = $1::ltree`, clientPath)
	if err != nil {
		return apperror.NewStoreError("rpc client clear update", err).WithDetails(clientPath)
	}
	if err := tx.Commit(); err != nil {
		return apperror.NewStoreError("rpc client clear commit", err).WithDetails(clientPath)
	}
	return nil
}

// ListWaiting returns QUEUED rows, optionally scoped to one client_path,
// ordered by response_timestamp ascending (spec.md §4.6).
func (in *Inbox) ListWaiting(ctx context.Context, clientPath *string, limit, offset int) ([]Record, error) {
	query := `
		SELECT id, request_id, client_path::text AS client_path, server_path::text AS server_path,
		       rpc_action, transaction_tag, response_payload, response_timestamp, is_new_result
		FROM rpc_client_slot
		WHERE is_new_result`
	args := []interface{}{}
	if clientPath != nil {
		if err := validatePath(*clientPath); err != nil {
			return nil, err
		}
		args = append(args, *clientPath)
		query += ` AND client_path = $1::ltree`
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY response_timestamp ASC, id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var rows []Record
	if err := in.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperror.NewStoreError("rpc client list waiting", err)
	}
	return rows, nil
}
