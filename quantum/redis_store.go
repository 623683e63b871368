package quantum

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cast"
)

// DefaultRedisKey is the list name used when none is configured.
const DefaultRedisKey = "quantum_leap_list"

var (
	minInstant = time.Unix(0, math.MinInt64)
	maxInstant = time.Unix(0, math.MaxInt64)
)

// RedisStore is a history stack kept in a Redis list so several processes can
// share it. Push and Pop map to RPUSH and RPOP, which Redis executes atomically.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	loc    *time.Location
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL makes every push refresh the list's expiry, so a stack abandoned by
// a crashed worker eventually disappears. Zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithLocation sets the location decoded instants are reported in when it
// agrees with the offset they were pushed at. Defaults to time.Local.
func WithLocation(loc *time.Location) RedisOption {
	return func(s *RedisStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewRedisStore creates a RedisStore on the list named key.
func NewRedisStore(client redis.UniversalClient, key string, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if key == "" {
		return nil, errors.New("list key cannot be empty")
	}

	s := &RedisStore{
		client: client,
		key:    key,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return s, nil
}

// Key returns the list name.
func (s *RedisStore) Key() string {
	return s.key
}

// Push appends t to the tail of the list.
func (s *RedisStore) Push(ctx context.Context, t time.Time) error {
	v, err := encodeInstant(t)
	if err != nil {
		return err
	}

	if s.ttl == 0 {
		if err := s.client.RPush(ctx, s.key, v).Err(); err != nil {
			return backendErr("rpush", err)
		}
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.key, v)
		pipe.Expire(ctx, s.key, s.ttl)
		return nil
	})
	if err != nil {
		return backendErr("rpush", err)
	}
	return nil
}

// Pop removes and returns the tail of the list.
func (s *RedisStore) Pop(ctx context.Context) (time.Time, bool, error) {
	v, err := s.client.RPop(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, backendErr("rpop", err)
	}

	t, err := s.decodeInstant(v)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Depth returns the length of the list.
func (s *RedisStore) Depth(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, backendErr("llen", err)
	}
	return int(n), nil
}

// Clear deletes the list.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return backendErr("del", err)
	}
	return nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return backendErr("ping", err)
	}
	return nil
}

// encodeInstant renders t as "<unix nanos>|<utc offset seconds>". The zero
// time becomes "".
func encodeInstant(t time.Time) (string, error) {
	if t.IsZero() {
		return "", nil
	}
	if err := checkRepresentable(t); err != nil {
		return "", err
	}
	_, offset := t.Zone()
	return cast.ToString(t.UnixNano()) + "|" + cast.ToString(offset), nil
}

func checkRepresentable(t time.Time) error {
	if t.Before(minInstant) || t.After(maxInstant) {
		return fmt.Errorf("%w: %s", ErrUnrepresentable, t.Format(time.RFC3339))
	}
	return nil
}

// decodeInstant restores an instant at its recorded offset. The store's
// location is used when it has the same offset at that instant, so names like
// Local survive; otherwise a fixed zone is built from the offset.
func (s *RedisStore) decodeInstant(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}

	nsPart, offPart, hasOffset := strings.Cut(v, "|")
	ns, err := cast.ToInt64E(nsPart)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q in %s: %v", ErrCorruptEntry, v, s.key, err)
	}
	t := time.Unix(0, ns).In(s.loc)
	if !hasOffset {
		return t, nil
	}

	offset, err := cast.ToIntE(offPart)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q in %s: %v", ErrCorruptEntry, v, s.key, err)
	}
	if _, locOffset := t.Zone(); locOffset != offset {
		t = t.In(time.FixedZone("", offset))
	}
	return t, nil
}

// Validate reports whether t can be pushed.
func (s *RedisStore) Validate(t time.Time) error {
	if t.IsZero() {
		return nil
	}
	return checkRepresentable(t)
}

func backendErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s failed: %v", ErrBackendDown, op, err)
}
