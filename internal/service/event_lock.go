package service

import (
	"context"
	"sync"

	appErrors "github.com/orbitcal/orbitcal-api/pkg/errors"
)

// EventLocker serializes mutating operations per event definition. Acquire
// is non-blocking: a held lock fails immediately with
// CONCURRENT_MODIFICATION so the caller can retry after backoff.
type EventLocker interface {
	Acquire(ctx context.Context, eventID string) (release func(), err error)
}

// MemoryEventLock is the in-process locker used by single-instance
// deployments and tests. Multi-instance deployments use the Redis-backed
// locker from the repository layer instead.
type MemoryEventLock struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryEventLock builds an in-process per-event locker.
func NewMemoryEventLock() *MemoryEventLock {
	return &MemoryEventLock{held: make(map[string]bool)}
}

// Acquire implements EventLocker.
func (l *MemoryEventLock) Acquire(_ context.Context, eventID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[eventID] {
		return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "")
	}
	l.held[eventID] = true
	return func() {
		l.mu.Lock()
		delete(l.held, eventID)
		l.mu.Unlock()
	}, nil
}
