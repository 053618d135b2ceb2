// Package schedule decides when a capture starts: it loads the day's race
// schedule and blocks until the configured lead interval before a race.
package schedule

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/clock"
	"github.com/sells-group/prerace-cli/internal/model"
)

// ErrDeadlinePassed is returned when the wake time is already in the past.
var ErrDeadlinePassed = eris.New("wake time already passed")

// Outcome is how a Wait ended.
type Outcome int

const (
	// Reached means the wake time arrived.
	Reached Outcome = iota
	// DeadlinePassed means the wake time was already past when Wait began.
	DeadlinePassed
	// Cancelled means the context was cancelled before the wake time.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Reached:
		return "reached"
	case DeadlinePassed:
		return "deadline_passed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Progress is emitted once per tick while waiting.
type Progress struct {
	Now       time.Time
	WakeAt    time.Time
	Remaining time.Duration
}

// Waiter blocks until Lead before a scheduled start.
type Waiter struct {
	Lead     time.Duration
	Interval time.Duration
	Clock    clock.Clock
	// OnProgress is called on the waiting goroutine once per tick.
	OnProgress func(Progress)
}

// NewWaiter returns a Waiter on the system clock.
func NewWaiter(lead, interval time.Duration) *Waiter {
	return &Waiter{Lead: lead, Interval: interval, Clock: clock.Real{}}
}

// WakeTime returns start minus lead.
func WakeTime(start time.Time, lead time.Duration) time.Time {
	return start.Add(-lead)
}

// Wait blocks until WakeTime(start, Lead), reporting progress every
// Interval. A wake time in the past returns DeadlinePassed with
// ErrDeadlinePassed without blocking. Cancellation is observed within one
// tick and returns Cancelled with model.ErrCancelled.
func (w *Waiter) Wait(ctx context.Context, start time.Time) (Outcome, error) {
	clk := w.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}

	wakeAt := WakeTime(start, w.Lead)
	log := zap.L().With(zap.Time("wake_at", wakeAt), zap.Time("start", start))

	if ctx.Err() != nil {
		return Cancelled, model.ErrCancelled
	}
	if !clk.Now().Before(wakeAt) {
		log.Warn("schedule: wake time already passed", zap.Duration("late_by", clk.Now().Sub(wakeAt)))
		return DeadlinePassed, ErrDeadlinePassed
	}

	for {
		if ctx.Err() != nil {
			log.Info("schedule: wait cancelled")
			return Cancelled, model.ErrCancelled
		}
		now := clk.Now()
		remaining := wakeAt.Sub(now)
		if remaining <= 0 {
			log.Info("schedule: wake time reached")
			return Reached, nil
		}

		p := Progress{Now: now, WakeAt: wakeAt, Remaining: remaining}
		if w.OnProgress != nil {
			w.OnProgress(p)
		}
		log.Debug("schedule: waiting", zap.Duration("remaining", remaining))

		tick := interval
		if remaining < tick {
			tick = remaining
		}
		select {
		case <-ctx.Done():
			log.Info("schedule: wait cancelled", zap.Duration("remaining", remaining))
			return Cancelled, model.ErrCancelled
		case <-clk.After(tick):
		}
	}
}
