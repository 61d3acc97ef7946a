package reconcile

import (
	"context"
	"sort"
	"testing"

	"github.com/glenn-edgar/kbcoord/internal/kb/registry"
)

// fakeRegistryStore and fakeSatellite let us exercise Reconciler's
// orchestration logic (spec.md §4.2, §8 properties 1-3) without a live
// Postgres instance.
type fakeRegistryStore struct {
	entries []registry.Entry
}

func (s *fakeRegistryStore) Insert(context.Context, registry.Entry) (int64, error) { return 0, nil }
func (s *fakeRegistryStore) PathExists(context.Context, string) (bool, error)      { return false, nil }
func (s *fakeRegistryStore) DeleteAll(context.Context) error                       { s.entries = nil; return nil }
func (s *fakeRegistryStore) ListByKind(_ context.Context, kind registry.Kind) ([]registry.Entry, error) {
	var out []registry.Entry
	for _, e := range s.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}
func (s *fakeRegistryStore) ListAll(context.Context) ([]registry.Entry, error) { return s.entries, nil }

type fakeRow struct {
	age int // monotonic "age" counter; lower = older
}

type fakeSatellite struct {
	kind  registry.Kind
	rows  map[string][]fakeRow
	nextAge int
	resetCalls map[string]int
}

func newFakeSatellite(kind registry.Kind) *fakeSatellite {
	return &fakeSatellite{kind: kind, rows: map[string][]fakeRow{}, resetCalls: map[string]int{}}
}

func (s *fakeSatellite) Kind() registry.Kind { return s.kind }

func (s *fakeSatellite) DistinctPaths(context.Context) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for p, rows := range s.rows {
		if len(rows) > 0 {
			out[p] = struct{}{}
		}
	}
	return out, nil
}

func (s *fakeSatellite) RowCount(_ context.Context, path string) (int, error) {
	return len(s.rows[path]), nil
}

func (s *fakeSatellite) DeletePaths(_ context.Context, paths []string) error {
	for _, p := range paths {
		delete(s.rows, p)
	}
	return nil
}

func (s *fakeSatellite) InsertPlaceholders(_ context.Context, path string, n int) error {
	for i := 0; i < n; i++ {
		s.nextAge++
		s.rows[path] = append(s.rows[path], fakeRow{age: s.nextAge})
	}
	return nil
}

func (s *fakeSatellite) DeleteOldest(_ context.Context, path string, n int) error {
	rows := s.rows[path]
	sort.Slice(rows, func(i, j int) bool { return rows[i].age < rows[j].age })
	if n > len(rows) {
		n = len(rows)
	}
	s.rows[path] = rows[n:]
	return nil
}

func (s *fakeSatellite) ResetSurviving(_ context.Context, path string) error {
	s.resetCalls[path]++
	return nil
}

func newTestReconciler(reg *fakeRegistryStore, sats ...*fakeSatellite) *Reconciler {
	r := &Reconciler{registryStore: reg}
	for _, s := range sats {
		r.satellites = append(r.satellites, s)
	}
	return r
}

func jobEntry(path string, depth int) registry.Entry {
	return registry.Entry{Kind: registry.KindJob, Path: path, Properties: map[string]interface{}{"queue_depth": depth}}
}

// S1 Reconcile grow: registry has one JOB entry path=a.b depth=3, satellite
// empty. After reconcile: 3 rows exist.
func TestReconcile_Grow(t *testing.T) {
	reg := &fakeRegistryStore{entries: []registry.Entry{jobEntry("a.b", 3)}}
	job := newFakeSatellite(registry.KindJob)
	r := newTestReconciler(reg, job)

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if got := len(job.rows["a.b"]); got != 3 {
		t.Errorf("rows for a.b = %d, want 3", got)
	}
}

// S2 Reconcile shrink: registry has JOB path=a.b depth=2, satellite has 5
// rows with ages 1..5. After reconcile, 2 rows remain: the 2 newest.
func TestReconcile_Shrink(t *testing.T) {
	reg := &fakeRegistryStore{entries: []registry.Entry{jobEntry("a.b", 2)}}
	job := newFakeSatellite(registry.KindJob)
	for i := 0; i < 5; i++ {
		job.nextAge++
		job.rows["a.b"] = append(job.rows["a.b"], fakeRow{age: job.nextAge})
	}
	r := newTestReconciler(reg, job)

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	rows := job.rows["a.b"]
	if len(rows) != 2 {
		t.Fatalf("rows for a.b = %d, want 2", len(rows))
	}
	for _, row := range rows {
		if row.age < 4 {
			t.Errorf("expected only the 2 newest rows (age>=4) to survive, found age=%d", row.age)
		}
	}
}

// Property 2: a satellite path absent from the registry loses all its rows.
func TestReconcile_DeletesRetiredPaths(t *testing.T) {
	reg := &fakeRegistryStore{entries: []registry.Entry{jobEntry("a.b", 1)}}
	job := newFakeSatellite(registry.KindJob)
	job.rows["a.b"] = []fakeRow{{age: 1}}
	job.rows["x.y"] = []fakeRow{{age: 1}, {age: 2}}
	r := newTestReconciler(reg, job)

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if _, ok := job.rows["x.y"]; ok {
		t.Error("expected rows under the retired path x.y to be deleted")
	}
}

// Property 3: reconcile is idempotent.
func TestReconcile_Idempotent(t *testing.T) {
	reg := &fakeRegistryStore{entries: []registry.Entry{jobEntry("a.b", 3)}}
	job := newFakeSatellite(registry.KindJob)
	r := newTestReconciler(reg, job)

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	firstCount := len(job.rows["a.b"])

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if got := len(job.rows["a.b"]); got != firstCount {
		t.Errorf("row count changed across idempotent reconcile: %d -> %d", firstCount, got)
	}
	if job.resetCalls["a.b"] != 2 {
		t.Errorf("expected ResetSurviving to run once per reconcile call, got %d calls", job.resetCalls["a.b"])
	}
}

func TestReconcileKind_UnknownKindFails(t *testing.T) {
	reg := &fakeRegistryStore{}
	r := newTestReconciler(reg)
	if err := r.ReconcileKind(context.Background(), registry.KindHeader); err == nil {
		t.Fatal("expected ReconcileKind to fail for a kind with no registered satellite")
	}
}
