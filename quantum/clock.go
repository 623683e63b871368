package quantum

import (
	"time"

	"go.uber.org/atomic"
)

// Clock reports the current time. Code under test should take a Clock (see
// GlobalClock) instead of calling time.Now.
type Clock interface {
	Now() time.Time
}

// systemClock reads the host's wall clock. It is what a Source falls back to
// whenever nothing is pinned.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewRealClock returns the host's wall clock.
func NewRealClock() Clock {
	return systemClock{}
}

// Source is a Clock that reports either the real time or a pinned instant.
// The zero value is not usable, use NewSource.
type Source struct {
	clock  Clock
	pinned atomic.Pointer[time.Time]
}

// NewSource returns an unpinned Source reading from clock, or from the system
// clock when clock is nil.
func NewSource(clock Clock) *Source {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Source{clock: clock}
}

// Now returns the pinned instant, or the real time when nothing is pinned.
func (s *Source) Now() time.Time {
	if p := s.pinned.Load(); p != nil {
		return *p
	}
	return s.clock.Now()
}

// Today returns the calendar date of Now.
func (s *Source) Today() Date {
	return DateOf(s.Now())
}

// Since returns the time elapsed since t according to Now.
func (s *Source) Since(t time.Time) time.Duration {
	return s.Now().Sub(t)
}

// Until returns the duration until t according to Now.
func (s *Source) Until(t time.Time) time.Duration {
	return t.Sub(s.Now())
}

// Real reads the underlying clock, ignoring any pin.
func (s *Source) Real() time.Time {
	return s.clock.Now()
}

// Pin makes Now report t until Unpin or the next Pin.
func (s *Source) Pin(t time.Time) {
	s.pinned.Store(&t)
}

// Unpin reverts Now to the real clock.
func (s *Source) Unpin() {
	s.pinned.Store(nil)
}

// Pinned returns the pinned instant, if any.
func (s *Source) Pinned() (time.Time, bool) {
	p := s.pinned.Load()
	if p == nil {
		return time.Time{}, false
	}
	return *p, true
}
