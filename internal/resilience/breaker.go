// Package resilience wraps store-facing calls in a sony/gobreaker circuit
// breaker, one breaker per named collaborator, the same per-channel
// isolation idiom the teacher's pkg/shared/circuitbreaker.Manager uses for
// notification delivery channels.
package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/glenn-edgar/kbcoord/internal/apperror"
)

// Manager hands out a named gobreaker.CircuitBreaker per collaborator
// (e.g. "job", "rpcserver", "registry"), creating it lazily on first use
// with a shared Settings template.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	settings func(name string) gobreaker.Settings
}

// NewManager builds a Manager. readyToTrip decides when a named breaker
// opens; the default (nil) trips after 5 consecutive failures, matching
// the teacher's BR-NOT-055 threshold.
func NewManager(readyToTrip func(counts gobreaker.Counts) bool) *Manager {
	if readyToTrip == nil {
		readyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		settings: func(name string) gobreaker.Settings {
			return gobreaker.Settings{
				Name:        name,
				MaxRequests: 1,
				Interval:    30 * time.Second,
				Timeout:     10 * time.Second,
				ReadyToTrip: readyToTrip,
			}
		},
	}
}

func (m *Manager) breaker(name string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb, ok := m.breakers[name]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(m.settings(name))
		m.breakers[name] = cb
	}
	return cb
}

// Do runs fn through the named breaker. Validation errors (apperror's
// ErrorTypeValidation/ErrorTypeNotFound/ErrorTypeCapacity) are caller
// mistakes or expected full-queue signals, not collaborator failures, and
// must not count toward the breaker tripping — only ErrorTypeStore,
// ErrorTypeContention and ErrorTypeConsistency do.
func (m *Manager) Do(name string, fn func() error) error {
	cb := m.breaker(name)
	var realErr error
	_, execErr := cb.Execute(func() (any, error) {
		realErr = fn()
		if realErr != nil && !countsAgainstBreaker(realErr) {
			// Report success to the breaker: this is an expected
			// caller-visible outcome, not a collaborator failure.
			return nil, nil
		}
		return nil, realErr
	})
	if realErr != nil {
		return realErr
	}
	return execErr
}

func countsAgainstBreaker(err error) bool {
	switch apperror.GetType(err) {
	case apperror.ErrorTypeStore, apperror.ErrorTypeContention, apperror.ErrorTypeConsistency:
		return true
	default:
		return false
	}
}

// State reports the named breaker's current state for introspection.
func (m *Manager) State(name string) gobreaker.State {
	return m.breaker(name).State()
}
