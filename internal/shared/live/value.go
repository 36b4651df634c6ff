// Package live holds observable state values that sessions expose to their consumers.
package live

import (
	"context"
	"sync"
)

// Value is the latest known state of something plus a change feed.
// Watchers only ever see the most recent value; intermediate updates may be skipped.
type Value[T any] struct {
	mu       sync.Mutex
	current  T
	watchers map[int]chan T
	nextID   int
	closed   bool
	done     chan struct{}
}

// NewValue seeds a value with its initial state.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{current: initial, watchers: map[int]chan T{}, done: make(chan struct{})}
}

// Get returns the current state.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set replaces the state and notifies watchers.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.current = next
	for _, ch := range v.watchers {
		offer(ch, next)
	}
}

// Watch streams the current state followed by every later state until ctx is done
// or the value is closed. The channel is closed afterwards.
func (v *Value[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		close(ch)
		return ch
	}
	id := v.nextID
	v.nextID++
	v.watchers[id] = ch
	ch <- v.current
	v.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-v.done:
		}
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.watchers[id]; ok {
			delete(v.watchers, id)
			close(ch)
		}
	}()
	return ch
}

// Close ends every watch. Later Set calls are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	close(v.done)
	for id, ch := range v.watchers {
		delete(v.watchers, id)
		close(ch)
	}
}

// offer replaces whatever is buffered with next. Callers hold v.mu.
func offer[T any](ch chan T, next T) {
	select {
	case ch <- next:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- next:
	default:
	}
}
