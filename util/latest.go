package util

import (
	"sync"
)

// Latest holds a single, most recent value and provides non-blocking
// publishing. Readers that fall behind only ever see the newest value.
type Latest[T any] struct {
	mu     sync.Mutex    // Protects access to 'value'
	value  T             // The latest value
	notify chan struct{} // Buffered channel of size 1 for notification
}

// NewLatest creates a new Latest instance holding initial.
func NewLatest[T any](initial T) *Latest[T] {
	return &Latest[T]{
		value:  initial,
		notify: make(chan struct{}, 1),
	}
}

// Publish replaces the current value. It never blocks.
func (l *Latest[T]) Publish(value T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = value

	select {
	case l.notify <- struct{}{}:
	default:
		// A notification is already pending.
	}
}

// Changed returns the notification channel for use in select statements.
func (l *Latest[T]) Changed() <-chan struct{} {
	return l.notify
}

// Value returns the current value.
func (l *Latest[T]) Value() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// HasPending checks if a notification is waiting to be consumed without
// consuming it.
func (l *Latest[T]) HasPending() bool {
	return len(l.notify) > 0
}
