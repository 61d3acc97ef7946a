package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestDoClassified_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := DoClassified(context.Background(), "push", fastPolicy(), func(error) bool { return true }, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoClassified_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	transient := errors.New("lock not available")
	err := DoClassified(context.Background(), "claim", fastPolicy(), func(e error) bool { return e == transient }, func() error {
		calls++
		if calls < 2 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoClassified_NonContentionErrorReturnsImmediately(t *testing.T) {
	calls := 0
	permanent := apperror.NewValueError("malformed path")
	err := DoClassified(context.Background(), "push", fastPolicy(), func(error) bool { return false }, func() error {
		calls++
		return permanent
	})
	if err != permanent {
		t.Fatalf("expected the permanent error unwrapped, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on non-contention error)", calls)
	}
}

func TestDoClassified_ExhaustsBudget(t *testing.T) {
	calls := 0
	transient := errors.New("serialization failure")
	err := DoClassified(context.Background(), "peek", fastPolicy(), func(error) bool { return true }, func() error {
		calls++
		return transient
	})
	if err == nil {
		t.Fatal("expected a retry-exhausted error")
	}
	if !apperror.IsType(err, apperror.ErrorTypeContention) {
		t.Errorf("expected a contention AppError, got %v", err)
	}
	if calls != fastPolicy().MaxAttempts {
		t.Errorf("calls = %d, want %d", calls, fastPolicy().MaxAttempts)
	}
}
