package reconcile

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// statusSatellite reconciles status_slot (spec.md §3.3): exactly one row
// per STATUS registry path, created and destroyed only by reconciliation.
type statusSatellite struct {
	pgSatelliteBase
}

func newStatusSatellite(db *sqlx.DB) *statusSatellite {
	return &statusSatellite{pgSatelliteBase{db: db, table: "status_slot", pathCol: "path", ageCol: "updated_at"}}
}

func (s *statusSatellite) Kind() registry.Kind { return registry.KindStatus }

func (s *statusSatellite) InsertPlaceholders(ctx context.Context, path string, n int) error {
	for i := 0; i < n; i++ {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO status_slot (path, data, updated_at) VALUES ($1::ltree, '{}'::jsonb, now())`, path)
		if err != nil {
			return apperror.NewStoreError("status insert placeholder", err).WithDetails(path)
		}
	}
	return nil
}

func (s *statusSatellite) ResetSurviving(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET data = '{}'::jsonb, updated_at = now() WHERE path = $1::ltree`, s.table), path)
	if err != nil {
		return apperror.NewStoreError("status reset surviving", err).WithDetails(path)
	}
	return nil
}
