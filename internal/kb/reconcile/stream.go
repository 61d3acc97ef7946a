package reconcile

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// streamSatellite reconciles stream_slot (spec.md §3.5): a ring of
// queue_depth rows per path. There is no valid/is_active flag to reset —
// the ring is simply "always full" after reconciliation, so
// ResetSurviving is a no-op: a row whose count didn't change has nothing
// to reset.
type streamSatellite struct {
	pgSatelliteBase
}

func newStreamSatellite(db *sqlx.DB) *streamSatellite {
	return &streamSatellite{pgSatelliteBase{db: db, table: "stream_slot", pathCol: "path", ageCol: "recorded_at"}}
}

func (s *streamSatellite) Kind() registry.Kind { return registry.KindStream }

func (s *streamSatellite) InsertPlaceholders(ctx context.Context, path string, n int) error {
	for i := 0; i < n; i++ {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO stream_slot (path, recorded_at, data) VALUES ($1::ltree, now(), '{}'::jsonb)`, path)
		if err != nil {
			return apperror.NewStoreError("stream insert placeholder", err).WithDetails(path)
		}
	}
	return nil
}

func (s *streamSatellite) ResetSurviving(context.Context, string) error {
	return nil
}
