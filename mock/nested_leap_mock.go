package mock

import (
	"context"
	"log/slog"
	"time"

	"quantumleap/quantum"
)

// NestedLeapMock leaps through instants in order on a private in-memory
// leaper, then leaps back once per leap. It returns the time observed after
// each step: first the leap targets, then the unwound instants, ending at
// the real time.
func NestedLeapMock(ctx context.Context, instants []time.Time) ([]time.Time, error) {
	l := quantum.New(quantum.WithSource(quantum.NewSource(nil)))
	observed := make([]time.Time, 0, 2*len(instants))

	for i, at := range instants {
		if _, err := l.Leap(ctx, at); err != nil {
			return nil, err
		}
		observed = append(observed, l.Source().Now())
		slog.Debug("nested leap", "depth", i+1, "to", at)
	}

	for range instants {
		now, err := l.LeapBack(ctx)
		if err != nil {
			return nil, err
		}
		observed = append(observed, now)
	}

	slog.Info("nested leaps unwound", "leaps", len(instants))
	return observed, nil
}
