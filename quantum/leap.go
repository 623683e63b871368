package quantum

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Leaper pins a Source to chosen instants and remembers what it displaced, so
// leaps can nest and be unwound in reverse order.
type Leaper struct {
	mu     sync.Mutex
	source *Source
	store  Store
	logger *slog.Logger

	underflow rate.Sometimes
}

// Option configures a Leaper.
type Option func(*Leaper)

// WithStore sets the history backend. A nil store keeps the default.
func WithStore(s Store) Option {
	return func(l *Leaper) {
		if s != nil {
			l.store = s
		}
	}
}

// WithSource sets the clock register the Leaper controls, for testing.
func WithSource(s *Source) Option {
	return func(l *Leaper) {
		if s != nil {
			l.source = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Leaper) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Leaper over the process-wide Source with an in-memory history.
func New(opts ...Option) *Leaper {
	l := &Leaper{
		source:    globalSource,
		store:     NewMemoryStore(),
		logger:    slog.Default(),
		underflow: rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Source returns the register this Leaper controls.
func (l *Leaper) Source() *Source {
	return l.source
}

// Store returns the current history backend.
func (l *Leaper) Store() Store {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store
}

// SetLogger replaces the logger. A nil logger installs slog.Default().
func (l *Leaper) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
}

// SetStore switches the history backend. A nil store installs a fresh MemoryStore.
// Entries in the previous backend are left where they are.
func (l *Leaper) SetStore(s Store) {
	if s == nil {
		s = NewMemoryStore()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store = s
}

// Leap pins the clock to at and returns it. The previously active state is
// pushed first so LeapBack can restore it. A zero at means the real current
// time. If the push fails, or the store reports at as unrepresentable (a
// RedisStore holds instants between 1678 and 2262), the clock is left untouched.
func (l *Leaper) Leap(ctx context.Context, at time.Time) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if at.IsZero() {
		at = l.source.Real()
	}

	if v, ok := l.store.(Validator); ok {
		if err := v.Validate(at); err != nil {
			return time.Time{}, err
		}
	}

	prev, _ := l.source.Pinned()
	if err := l.store.Push(ctx, prev); err != nil {
		return time.Time{}, err
	}
	l.source.Pin(at)

	l.logger.Debug("leap", "to", at, "from", describe(prev))
	return at, nil
}

// LeapNow pins the clock to the real current time.
func (l *Leaper) LeapNow(ctx context.Context) (time.Time, error) {
	return l.Leap(ctx, time.Time{})
}

// LeapWithin leaps to at, runs fn, and leaps back on every exit path, including
// panics. The clock is restored before fn's error is returned; a failed restore
// is joined to it. When fn panics, a failed restore is logged instead. Either
// way the clock goes back to the state it had before the call. The returned
// time is the instant fn ran at.
func (l *Leaper) LeapWithin(ctx context.Context, at time.Time, fn func(context.Context) error) (target time.Time, err error) {
	prev, wasPinned := l.source.Pinned()

	target, err = l.Leap(ctx, at)
	if err != nil {
		return time.Time{}, err
	}

	completed := false
	defer func() {
		_, backErr := l.LeapBack(context.WithoutCancel(ctx))
		if backErr == nil {
			return
		}

		// The history entry is stranded, but the clock must not stay displaced.
		l.repin(prev, wasPinned)
		if !completed {
			l.currentLogger().Error("leap back after aborted scope failed", "at", target, "error", backErr)
			return
		}
		err = errors.Join(err, backErr)
	}()

	err = fn(ctx)
	completed = true
	return target, err
}

// LeapNowWithin is LeapWithin at the real current time.
func (l *Leaper) LeapNowWithin(ctx context.Context, fn func(context.Context) error) (time.Time, error) {
	return l.LeapWithin(ctx, time.Time{}, fn)
}

// LeapBack undoes the most recent leap and returns the time now in effect.
// With nothing to undo it reverts to real time; that is not an error.
func (l *Leaper) LeapBack(ctx context.Context) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok, err := l.store.Pop(ctx)
	if err != nil {
		return time.Time{}, err
	}

	switch {
	case !ok:
		l.underflow.Do(func() {
			l.logger.Warn("leap back with empty history, reverting to real time")
		})
		l.source.Unpin()
	case prev.IsZero():
		l.source.Unpin()
	default:
		l.source.Pin(prev)
	}

	now := l.source.Now()
	l.logger.Debug("leap back", "to", describe(prev), "now", now)
	return now, nil
}

func (l *Leaper) currentLogger() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger
}

func (l *Leaper) repin(t time.Time, pinned bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pinned {
		l.source.Pin(t)
		return
	}
	l.source.Unpin()
}

// Depth returns the number of leaps that can still be undone.
func (l *Leaper) Depth(ctx context.Context) (int, error) {
	return l.Store().Depth(ctx)
}

// Reset unpins the clock and, when the backend supports it, drops the whole
// history. Meant for suite teardown.
func (l *Leaper) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.source.Unpin()
	if c, ok := l.store.(Clearer); ok {
		return c.Clear(ctx)
	}
	return nil
}

func describe(t time.Time) any {
	if t.IsZero() {
		return "real time"
	}
	return t
}
