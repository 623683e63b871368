package quantum

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	globalSource = NewSource(NewRealClock())
	std          = New()
)

// GlobalClock returns the process-wide Clock. Inject it wherever code under
// test would otherwise call time.Now.
func GlobalClock() Clock {
	return globalSource
}

// Now returns the process-wide current time.
func Now() time.Time {
	return globalSource.Now()
}

// Today returns the process-wide current date.
func Today() Date {
	return globalSource.Today()
}

// Since returns the time elapsed since t according to Now.
func Since(t time.Time) time.Duration {
	return globalSource.Since(t)
}

// Until returns the duration until t according to Now.
func Until(t time.Time) time.Duration {
	return globalSource.Until(t)
}

// Default returns the process-wide Leaper.
func Default() *Leaper {
	return std
}

// Leap pins the process-wide clock to at. See Leaper.Leap.
func Leap(ctx context.Context, at time.Time) (time.Time, error) {
	return std.Leap(ctx, at)
}

// LeapNow pins the process-wide clock to the real current time.
func LeapNow(ctx context.Context) (time.Time, error) {
	return std.LeapNow(ctx)
}

// LeapWithin runs fn with the process-wide clock pinned to at. See Leaper.LeapWithin.
func LeapWithin(ctx context.Context, at time.Time, fn func(context.Context) error) (time.Time, error) {
	return std.LeapWithin(ctx, at, fn)
}

// LeapNowWithin runs fn with the process-wide clock pinned to the real current time.
func LeapNowWithin(ctx context.Context, fn func(context.Context) error) (time.Time, error) {
	return std.LeapNowWithin(ctx, fn)
}

// LeapBack undoes the most recent process-wide leap.
func LeapBack(ctx context.Context) (time.Time, error) {
	return std.LeapBack(ctx)
}

// Depth reports how many process-wide leaps can be undone.
func Depth(ctx context.Context) (int, error) {
	return std.Depth(ctx)
}

// Reset unpins the process-wide clock and clears its history.
func Reset(ctx context.Context) error {
	return std.Reset(ctx)
}

// UseLogger sets the logger of the process-wide leaper.
func UseLogger(logger *slog.Logger) {
	std.SetLogger(logger)
}

// UseStore switches the process-wide history backend.
func UseStore(s Store) {
	std.SetStore(s)
}

// UseLocal switches the process-wide history to a fresh in-process stack.
func UseLocal() {
	std.SetStore(nil)
}

// UseRedis switches the process-wide history to the Redis list named key.
func UseRedis(client redis.UniversalClient, key string, opts ...RedisOption) error {
	s, err := NewRedisStore(client, key, opts...)
	if err != nil {
		return err
	}
	std.SetStore(s)
	return nil
}
