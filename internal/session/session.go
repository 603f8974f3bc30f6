// Package session holds the one authenticated client a server uses for its lifetime.
package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BuildFunc constructs the session value. It runs at most once successfully.
type BuildFunc[T any] func(ctx context.Context) (T, error)

// Manager lazily builds a value on first use and keeps it. A failed build is not
// remembered, so a later call tries again (credentials are re-read at that point).
type Manager[T any] struct {
	build BuildFunc[T]
	group singleflight.Group

	mu    sync.RWMutex
	value T
	ready bool
}

func New[T any](build BuildFunc[T]) *Manager[T] {
	return &Manager[T]{build: build}
}

// Ready returns a manager already holding v. Used by tests and eager startup.
func Ready[T any](v T) *Manager[T] {
	return &Manager[T]{value: v, ready: true}
}

// Get returns the session, building it if needed. Concurrent first callers share
// one build.
func (m *Manager[T]) Get(ctx context.Context) (T, error) {
	m.mu.RLock()
	if m.ready {
		v := m.value
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.group.Do("session", func() (any, error) {
		m.mu.RLock()
		if m.ready {
			v := m.value
			m.mu.RUnlock()
			return v, nil
		}
		m.mu.RUnlock()

		v, err := m.build(ctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.value, m.ready = v, true
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
