// Package readiness gates work on a condition that becomes true at an unknown
// time, such as a host page finishing its render.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 100 * time.Millisecond

var ErrPredicateFailed = errors.New("readiness predicate failed")

// Predicate reports whether the awaited condition holds.
type Predicate func(ctx context.Context) (bool, error)

// Action runs once, after the predicate first returns true.
type Action func(ctx context.Context)

// Wait tracks one polling loop started by Start.
type Wait struct {
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	err    error
	checks int
}

// Start checks predicate immediately and then every interval until it holds,
// then calls action and stops. It returns without blocking.
func Start(ctx context.Context, interval time.Duration, predicate Predicate, action Action) *Wait {
	return StartWithLogger(ctx, slog.Default(), interval, predicate, action)
}

func StartWithLogger(ctx context.Context, logger *slog.Logger, interval time.Duration, predicate Predicate, action Action) *Wait {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Wait{
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}

	go w.run(ctx, interval, predicate, action)

	return w
}

// WaitFor is the blocking form of Start.
func WaitFor(ctx context.Context, interval time.Duration, predicate Predicate, action Action) error {
	w := Start(ctx, interval, predicate, action)
	<-w.Done()
	return w.Err()
}

func (w *Wait) run(ctx context.Context, interval time.Duration, predicate Predicate, action Action) {
	defer close(w.done)
	defer w.cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.finish(ctx.Err())
			return
		case <-timer.C:
		}

		ok, err := w.check(ctx, predicate)
		if ctx.Err() != nil {
			w.finish(ctx.Err())
			return
		}
		if err != nil {
			w.logger.Error("readiness check failed", "checks", w.Checks(), "error", err)
			w.finish(err)
			return
		}
		if ok {
			action(ctx)
			w.finish(nil)
			return
		}

		timer.Reset(interval)
	}
}

func (w *Wait) check(ctx context.Context, predicate Predicate) (ok bool, err error) {
	w.mu.Lock()
	w.checks++
	w.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("%w: panic: %v", ErrPredicateFailed, r)
		}
	}()

	ok, err = predicate(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPredicateFailed, err)
	}
	return ok, nil
}

func (w *Wait) finish(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// Done is closed once the action has run or polling stopped.
func (w *Wait) Done() <-chan struct{} {
	return w.done
}

// Err is nil after the action ran, the context error after cancellation, and
// wraps ErrPredicateFailed when the predicate failed.
func (w *Wait) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Wait) Checks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.checks
}

func (w *Wait) Cancel() {
	w.cancel()
}
