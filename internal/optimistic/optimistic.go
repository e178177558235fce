// Package optimistic applies a local change before the remote call that
// confirms it, and reverts the change when that call fails.
package optimistic

import (
	"context"
	"sync"
)

// Mutation describes one optimistic change to a Value.
type Mutation[T any] struct {
	// Apply computes the optimistic value. An error aborts the mutation
	// before Commit runs.
	Apply func(T) (T, error)
	// Commit performs the remote side of the change.
	Commit func(ctx context.Context) error
	// Revert undoes Apply after a failed Commit. It receives the current
	// value, which may include other mutations applied in the meantime.
	Revert func(T) T
	// Settle, if set, adjusts the value after a successful Commit.
	Settle func(T) T
}

// Value is a locally held value that mutations update ahead of the remote.
type Value[T any] struct {
	mu         sync.Mutex
	v          T
	onRollback func(error)
}

// New creates a Value. onRollback, if non-nil, is called with the commit
// error each time a mutation is reverted.
func New[T any](initial T, onRollback func(error)) *Value[T] {
	return &Value[T]{v: initial, onRollback: onRollback}
}

// Get returns the current value, including in-flight mutations.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.v
}

// Do runs m. The lock is not held during Commit, so readers observe the
// optimistic value while the remote call is in flight.
func (v *Value[T]) Do(ctx context.Context, m Mutation[T]) error {
	v.mu.Lock()
	next, err := m.Apply(v.v)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	v.v = next
	v.mu.Unlock()

	if err := m.Commit(ctx); err != nil {
		v.mu.Lock()
		v.v = m.Revert(v.v)
		v.mu.Unlock()
		if v.onRollback != nil {
			v.onRollback(err)
		}
		return err
	}

	if m.Settle != nil {
		v.mu.Lock()
		v.v = m.Settle(v.v)
		v.mu.Unlock()
	}
	return nil
}
