package reconcile

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// rpcClientSatellite reconciles rpc_client_slot (spec.md §3.7): a ring of
// queue_depth rows per client_path, age-ordered by response_timestamp.
type rpcClientSatellite struct {
	pgSatelliteBase
}

func newRPCClientSatellite(db *sqlx.DB) *rpcClientSatellite {
	return &rpcClientSatellite{pgSatelliteBase{db: db, table: "rpc_client_slot", pathCol: "client_path", ageCol: "response_timestamp"}}
}

func (s *rpcClientSatellite) Kind() registry.Kind { return registry.KindRPCClient }

func (s *rpcClientSatellite) InsertPlaceholders(ctx context.Context, path string, n int) error {
	for i := 0; i < n; i++ {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO rpc_client_slot
				(request_id, client_path, server_path, rpc_action, transaction_tag, response_payload, response_timestamp, is_new_result)
			VALUES
				(gen_random_uuid(), $1::ltree, $1::ltree, '', '', '{}'::jsonb, now(), false)`, path)
		if err != nil {
			return apperror.NewStoreError("rpc client insert placeholder", err).WithDetails(path)
		}
	}
	return nil
}

func (s *rpcClientSatellite) ResetSurviving(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rpc_client_slot
		SET is_new_result = false, request_id = gen_random_uuid(), server_path = client_path,
		    rpc_action = '', transaction_tag = '', response_payload = '{}'::jsonb, response_timestamp = now()
		WHERE client_path = $1::ltree`, path)
	if err != nil {
		return apperror.NewStoreError("rpc client reset surviving", err).WithDetails(path)
	}
	return nil
}
