package reconcile

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// rpcServerSatellite reconciles rpc_server_slot (spec.md §3.6): a ring of
// queue_depth rows per server_path, age-ordered by request_timestamp.
// reconcile may force any slot state back to "empty" regardless of what an
// in-flight request was doing (spec.md §4.5's state machine).
type rpcServerSatellite struct {
	pgSatelliteBase
}

func newRPCServerSatellite(db *sqlx.DB) *rpcServerSatellite {
	return &rpcServerSatellite{pgSatelliteBase{db: db, table: "rpc_server_slot", pathCol: "server_path", ageCol: "request_timestamp"}}
}

func (s *rpcServerSatellite) Kind() registry.Kind { return registry.KindRPCServer }

func (s *rpcServerSatellite) InsertPlaceholders(ctx context.Context, path string, n int) error {
	for i := 0; i < n; i++ {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO rpc_server_slot
				(server_path, request_id, rpc_action, request_payload, request_timestamp,
				 transaction_tag, state, priority, processing_timestamp, completed_timestamp, rpc_client_queue)
			VALUES
				($1::ltree, gen_random_uuid(), '', '{}'::jsonb, now(),
				 '', 'empty', 0, NULL, NULL, NULL)`, path)
		if err != nil {
			return apperror.NewStoreError("rpc server insert placeholder", err).WithDetails(path)
		}
	}
	return nil
}

func (s *rpcServerSatellite) ResetSurviving(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rpc_server_slot
		SET state = 'empty', request_id = gen_random_uuid(), rpc_action = '', request_payload = '{}'::jsonb,
		    transaction_tag = '', priority = 0, processing_timestamp = NULL, completed_timestamp = NULL,
		    rpc_client_queue = NULL, request_timestamp = now()
		WHERE server_path = $1::ltree`, path)
	if err != nil {
		return apperror.NewStoreError("rpc server reset surviving", err).WithDetails(path)
	}
	return nil
}
