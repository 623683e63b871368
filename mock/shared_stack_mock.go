package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"quantumleap/quantum"
)

// SharedStackReport records how a shared stack was built and unwound.
type SharedStackReport struct {
	// Pushed holds each worker's leap target in the order its push landed.
	Pushed []time.Time
	// Popped holds what each unwind step restored, most recent first.
	Popped []time.Time
}

// SharedStackMock simulates parallel test workers sharing one Redis history
// stack. Every worker owns its clock register, as a separate process would,
// and leaps twice so the second push records the first target. The harness
// then unwinds the whole stack from a fresh worker.
func SharedStackMock(ctx context.Context, rdb *redis.Client, key string, workerCount int) (*SharedStackReport, error) {
	base := time.Date(1956, 9, 13, 15, 0, 0, 0, time.Local)

	newWorker := func() (*quantum.Leaper, error) {
		s, err := quantum.NewRedisStore(rdb, key)
		if err != nil {
			return nil, err
		}
		return quantum.New(quantum.WithStore(s), quantum.WithSource(quantum.NewSource(nil))), nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report SharedStackReport
		errs   = make(chan error, workerCount)
	)

	st := time.Now()
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			l, err := newWorker()
			if err != nil {
				errs <- err
				return
			}

			first := base.AddDate(workerID, 0, 0)
			if _, err := l.Leap(ctx, first); err != nil {
				errs <- fmt.Errorf("worker %d: %w", workerID, err)
				return
			}

			// Hold the lock across the push so Pushed matches list order.
			mu.Lock()
			defer mu.Unlock()
			if _, err := l.Leap(ctx, first.Add(time.Hour)); err != nil {
				errs <- fmt.Errorf("worker %d: %w", workerID, err)
				return
			}
			report.Pushed = append(report.Pushed, first)
			slog.Debug("worker leapt", "worker", workerID, "to", first)
		}(w + 1)
	}
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}

	l, err := newWorker()
	if err != nil {
		return nil, err
	}
	for {
		depth, err := l.Depth(ctx)
		if err != nil {
			return nil, err
		}
		if depth == 0 {
			break
		}
		if _, err := l.LeapBack(ctx); err != nil {
			return nil, err
		}
		if at, ok := l.Source().Pinned(); ok {
			report.Popped = append(report.Popped, at)
		}
	}

	slog.Info("shared stack unwound",
		"workers", workerCount,
		"pushed", len(report.Pushed),
		"popped", len(report.Popped),
		"elapsed", time.Since(st))
	return &report, nil
}
