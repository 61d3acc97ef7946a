package registry

import (
	"context"
	"testing"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
	"github.com/glenn-edgar/kbcoord/internal/kb/jsonb"
	"github.com/glenn-edgar/kbcoord/internal/path"
)

// fakeStore is an in-memory Store used to unit test Builder without a live
// Postgres instance, the way the teacher's sqlmock-based tests isolate
// logic from the driver.
type fakeStore struct {
	byPath map[string]Entry
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{byPath: map[string]Entry{}}
}

func (s *fakeStore) Insert(_ context.Context, e Entry) (int64, error) {
	if _, exists := s.byPath[e.Path]; exists {
		return 0, apperror.NewInstallationFailed("duplicate registry path", nil).WithDetails(e.Path)
	}
	s.nextID++
	e.ID = s.nextID
	s.byPath[e.Path] = e
	return e.ID, nil
}

func (s *fakeStore) PathExists(_ context.Context, dottedPath string) (bool, error) {
	_, ok := s.byPath[dottedPath]
	return ok, nil
}

func (s *fakeStore) DeleteAll(_ context.Context) error {
	s.byPath = map[string]Entry{}
	return nil
}

func (s *fakeStore) ListByKind(_ context.Context, kind Kind) ([]Entry, error) {
	var out []Entry
	for _, e := range s.byPath {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAll(_ context.Context) ([]Entry, error) {
	var out []Entry
	for _, e := range s.byPath {
		out = append(out, e)
	}
	return out, nil
}

func TestBuilder_HeaderInfoLeave(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := NewBuilder(store, path.Path{})

	if _, err := b.AddHeader(ctx, KindHeader, "site1", nil, nil); err != nil {
		t.Fatalf("AddHeader: %v", err)
	}
	leaf, err := b.AddInfo(ctx, KindJob, "worker_jobs", jsonb.Map{"queue_depth": 3}, nil)
	if err != nil {
		t.Fatalf("AddInfo: %v", err)
	}
	if leaf.String() != "kb_header.site1.kb_job_queue.worker_jobs" {
		t.Errorf("leaf path = %q", leaf.String())
	}
	// AddInfo must not leave a frame on the stack.
	if b.StackDepth() != 1 {
		t.Fatalf("StackDepth after AddInfo = %d, want 1 (only the header frame)", b.StackDepth())
	}

	if err := b.Leave(KindHeader, "site1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := b.CheckInstallation(ctx); err != nil {
		t.Fatalf("CheckInstallation: %v", err)
	}
}

func TestBuilder_LeaveMismatchFails(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(newFakeStore(), path.Path{})
	if _, err := b.AddHeader(ctx, KindHeader, "site1", nil, nil); err != nil {
		t.Fatalf("AddHeader: %v", err)
	}
	err := b.Leave(KindHeader, "other")
	if err == nil {
		t.Fatal("expected Leave mismatch to fail")
	}
	if !apperror.IsType(err, apperror.ErrorTypeConsistency) {
		t.Errorf("expected a consistency error, got %v", err)
	}
}

func TestBuilder_CheckInstallationFailsOnUnbalancedStackAndClearsRegistry(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := NewBuilder(store, path.Path{})

	if _, err := b.AddHeader(ctx, KindHeader, "site1", nil, nil); err != nil {
		t.Fatalf("AddHeader: %v", err)
	}
	if _, err := b.AddInfo(ctx, KindStatus, "temp", nil, nil); err != nil {
		t.Fatalf("AddInfo: %v", err)
	}

	err := b.CheckInstallation(ctx)
	if err == nil {
		t.Fatal("expected CheckInstallation to fail with an unclosed header frame")
	}
	if !apperror.IsType(err, apperror.ErrorTypeConsistency) {
		t.Errorf("expected a consistency error, got %v", err)
	}
	all, _ := store.ListAll(ctx)
	if len(all) != 0 {
		t.Errorf("expected registry to be cleared on installation failure, found %d rows", len(all))
	}
}

func TestBuilder_DuplicatePathFails(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	b := NewBuilder(store, path.Path{})

	if _, err := b.AddInfo(ctx, KindStatus, "temp", nil, nil); err != nil {
		t.Fatalf("AddInfo: %v", err)
	}
	_, err := b.AddInfo(ctx, KindStatus, "temp", nil, nil)
	if err == nil {
		t.Fatal("expected duplicate path insertion to fail")
	}
}

func TestBuilder_QueuedKindRequiresQueueDepth(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(newFakeStore(), path.Path{})

	_, err := b.AddInfo(ctx, KindJob, "worker_jobs", nil, nil)
	if err == nil {
		t.Fatal("expected missing queue_depth to fail validation")
	}
	if !apperror.IsType(err, apperror.ErrorTypeValidation) {
		t.Errorf("expected a validation error, got %v", err)
	}

	_, err = b.AddInfo(ctx, KindJob, "worker_jobs", jsonb.Map{"queue_depth": -1}, nil)
	if err == nil {
		t.Fatal("expected negative queue_depth to fail validation")
	}
}
