package reconcile

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// jobSatellite reconciles job_slot (spec.md §3.4): queue_depth rows per
// path, age-ordered by completed_at.
type jobSatellite struct {
	pgSatelliteBase
}

func newJobSatellite(db *sqlx.DB) *jobSatellite {
	return &jobSatellite{pgSatelliteBase{db: db, table: "job_slot", pathCol: "path", ageCol: "completed_at"}}
}

func (s *jobSatellite) Kind() registry.Kind { return registry.KindJob }

func (s *jobSatellite) InsertPlaceholders(ctx context.Context, path string, n int) error {
	for i := 0; i < n; i++ {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO job_slot (path, schedule_at, started_at, completed_at, is_active, valid, data)
			VALUES ($1::ltree, NULL, NULL, now(), false, false, '{}'::jsonb)`, path)
		if err != nil {
			return apperror.NewStoreError("job insert placeholder", err).WithDetails(path)
		}
	}
	return nil
}

func (s *jobSatellite) ResetSurviving(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_slot
		SET valid = false, is_active = false, schedule_at = NULL, started_at = NULL,
		    completed_at = now(), data = '{}'::jsonb
		WHERE path = $1::ltree`, path)
	if err != nil {
		return apperror.NewStoreError("job reset surviving", err).WithDetails(path)
	}
	return nil
}
