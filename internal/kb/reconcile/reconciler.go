package reconcile

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// Reconciler brings every satellite table into agreement with the
// registry (spec.md §4.2). It holds one satellite handle per kind and
// iterates them in the fixed order STATUS, JOB, STREAM, RPC_SERVER,
// RPC_CLIENT — composition standing in for the original's
// multiple-inheritance aggregation of per-kind check_installation calls
// (spec.md §9).
type Reconciler struct {
	registryStore registry.Store
	satellites    []satellite
}

// New builds a Reconciler wired to a live Postgres connection for the
// satellite tables and the given registry store for the source of truth.
func New(db *sqlx.DB, registryStore registry.Store) *Reconciler {
	return &Reconciler{
		registryStore: registryStore,
		satellites: []satellite{
			newStatusSatellite(db),
			newJobSatellite(db),
			newStreamSatellite(db),
			newRPCServerSatellite(db),
			newRPCClientSatellite(db),
		},
	}
}

// Reconcile runs the full installation/sync pass described in spec.md
// §4.2, one kind at a time. No transaction wraps a pass: each satellite
// mutation below is an auto-committing single statement, so when a kind
// fails, the statements already run for that kind stay applied, the
// earlier kinds stay reconciled, and the later kinds are not touched. A
// caller can retry reconcile from scratch — repeated invocation is
// idempotent (spec.md §4.2, §8.3).
func (r *Reconciler) Reconcile(ctx context.Context) error {
	for _, sat := range r.satellites {
		if err := r.reconcileKind(ctx, sat); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileKind runs the pass for a single kind, for callers (tests,
// operator tooling) that want to reconcile one satellite at a time.
func (r *Reconciler) ReconcileKind(ctx context.Context, kind registry.Kind) error {
	for _, sat := range r.satellites {
		if sat.Kind() == kind {
			return r.reconcileKind(ctx, sat)
		}
	}
	return apperror.NewValueError("unknown satellite kind").WithDetailsf("kind=%s", kind)
}

func (r *Reconciler) reconcileKind(ctx context.Context, sat satellite) error {
	desired, err := r.desiredPaths(ctx, sat.Kind())
	if err != nil {
		return err
	}
	satPaths, err := sat.DistinctPaths(ctx)
	if err != nil {
		return err
	}

	toDelete := make([]string, 0)
	for p := range satPaths {
		if _, ok := desired[p]; !ok {
			toDelete = append(toDelete, p)
		}
	}
	if len(toDelete) > 0 {
		if err := sat.DeletePaths(ctx, toDelete); err != nil {
			return err
		}
	}

	for p, d := range desired {
		cur, err := sat.RowCount(ctx, p)
		if err != nil {
			return err
		}
		switch {
		case cur < d.QueueDepth:
			if err := sat.InsertPlaceholders(ctx, p, d.QueueDepth-cur); err != nil {
				return err
			}
		case cur > d.QueueDepth:
			if err := sat.DeleteOldest(ctx, p, cur-d.QueueDepth); err != nil {
				return err
			}
		}
		if err := sat.ResetSurviving(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// desiredPaths reads the registry's (path, queue_depth) set for kind.
// STATUS entries always desire exactly one row per spec.md §3.3, regardless
// of whether properties.queue_depth is present.
func (r *Reconciler) desiredPaths(ctx context.Context, kind registry.Kind) (map[string]desiredPath, error) {
	entries, err := r.registryStore.ListByKind(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]desiredPath, len(entries))
	for _, e := range entries {
		depth := 1
		if kind.QueuedKind() {
			d, ok := e.QueueDepth()
			if !ok || d < 0 {
				return nil, apperror.NewInstallationFailed("registry entry missing valid queue_depth", nil).WithDetailsf("path=%s kind=%s", e.Path, kind)
			}
			depth = d
		}
		out[e.Path] = desiredPath{Path: e.Path, QueueDepth: depth}
	}
	return out, nil
}
