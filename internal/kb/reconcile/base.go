package reconcile

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
)

// pgSatelliteBase implements the parts of satellite that are identical
// across kinds once parameterized by table/column names: distinct-path
// enumeration, row counting, chunked delete-by-path, and oldest-first
// delete-by-count. Table and column names are fixed internal constants
// (never user input), so building SQL with fmt.Sprintf here carries no
// injection risk.
type pgSatelliteBase struct {
	db      *sqlx.DB
	table   string
	pathCol string
	ageCol  string
}

func (b pgSatelliteBase) DistinctPaths(ctx context.Context) (map[string]struct{}, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %s::text FROM %s`, b.pathCol, b.table)
	var paths []string
	if err := b.db.SelectContext(ctx, &paths, query); err != nil {
		return nil, apperror.NewStoreError("satellite distinct paths", err).WithDetails(b.table)
	}
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out, nil
}

func (b pgSatelliteBase) RowCount(ctx context.Context, path string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1::ltree`, b.table, b.pathCol)
	var n int
	if err := b.db.GetContext(ctx, &n, query, path); err != nil {
		return 0, apperror.NewStoreError("satellite row count", err).WithDetails(path)
	}
	return n, nil
}

func (b pgSatelliteBase) DeletePaths(ctx context.Context, paths []string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ANY($1::ltree[])`, b.table, b.pathCol)
	for start := 0; start < len(paths); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(paths) {
			end = len(paths)
		}
		chunk := paths[start:end]
		if _, err := b.db.ExecContext(ctx, query, pq.Array(chunk)); err != nil {
			return apperror.NewStoreError("satellite delete paths", err).WithDetails(b.table)
		}
	}
	return nil
}

func (b pgSatelliteBase) DeleteOldest(ctx context.Context, path string, n int) error {
	if n <= 0 {
		return nil
	}
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id IN (
			SELECT id FROM %s WHERE %s = $1::ltree ORDER BY %s ASC, id ASC LIMIT $2
		)`, b.table, b.table, b.pathCol, b.ageCol)
	if _, err := b.db.ExecContext(ctx, query, path, n); err != nil {
		return apperror.NewStoreError("satellite delete oldest", err).WithDetails(path)
	}
	return nil
}
