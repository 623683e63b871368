// Package quantum lets tests pin the time observed by code that reads it through
// this package, with nested overrides unwound from a history stack. The stack
// lives in process memory or in a Redis list shared between processes.
package quantum

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBackendDown wraps failures to reach the shared backend.
	ErrBackendDown = errors.New("quantum: history backend unavailable")
	// ErrUnrepresentable is returned when an instant cannot be encoded by the backend.
	ErrUnrepresentable = errors.New("quantum: instant out of representable range")
	// ErrCorruptEntry is returned when a stored entry cannot be decoded.
	ErrCorruptEntry = errors.New("quantum: corrupt history entry")
)

// Store is a LIFO stack of instants. The zero time.Time is a valid entry and
// must round-trip; stores never interpret entries.
type Store interface {
	Push(ctx context.Context, t time.Time) error
	// Pop removes and returns the last pushed entry. ok is false when the stack is empty.
	Pop(ctx context.Context) (t time.Time, ok bool, err error)
	Depth(ctx context.Context) (int, error)
}

// Clearer is implemented by stores that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Validator is implemented by stores that cannot hold every instant. Leap
// checks its target against it before pinning, so an instant the store could
// not later push is rejected up front.
type Validator interface {
	Validate(t time.Time) error
}
