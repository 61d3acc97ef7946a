// Package reconcile implements the idempotent installation/sync of
// satellite tables from the registry (spec.md §4.2). Multiple inheritance
// in the original source was purely a code-reuse device to aggregate
// check_installation() calls across satellite managers; here that's plain
// composition (spec.md §9): Reconciler holds one satellite handle per kind
// and iterates them in a fixed order.
package reconcile

import (
	"context"

	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// desiredPath is one registry-declared path and the row count its satellite
// table must converge to.
type desiredPath struct {
	Path       string
	QueueDepth int
}

// satellite is implemented once per satellite kind (status, job, stream,
// rpc_server, rpc_client). Reconciler drives these five uniformly; the
// column layouts differ (spec.md §3.3–§3.7) so each kind supplies its own
// insert/reset SQL, but the delete/count machinery is shared via
// pgSatelliteBase.
type satellite interface {
	Kind() registry.Kind
	// DistinctPaths returns every path currently represented in the
	// satellite table, regardless of what the registry says.
	DistinctPaths(ctx context.Context) (map[string]struct{}, error)
	// RowCount returns how many rows currently exist for path.
	RowCount(ctx context.Context, path string) (int, error)
	// DeletePaths removes every row under any of the given paths, chunked
	// to bound query size (spec.md §4.2 step 4).
	DeletePaths(ctx context.Context, paths []string) error
	// InsertPlaceholders adds n fresh rows for path in their default state.
	InsertPlaceholders(ctx context.Context, path string, n int) error
	// DeleteOldest removes the n oldest rows for path, ordered by the
	// kind's age column (spec.md §4.2 step 5).
	DeleteOldest(ctx context.Context, path string, n int) error
	// ResetSurviving resets every remaining row under path to its default
	// state (spec.md §4.2 step 6). Kinds with no flags to reset (stream)
	// may implement this as a no-op.
	ResetSurviving(ctx context.Context, path string) error
}

const deleteChunkSize = 500
