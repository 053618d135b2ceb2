package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/prerace-cli/internal/clock"
)

// IntervalLimiter enforces a minimum spacing between consecutive requests to
// one source. It is independent of retry backoff: a retry waits for its
// backoff and then for the limiter.
type IntervalLimiter struct {
	lim     *rate.Limiter
	clk     clock.Clock
	spacing time.Duration
}

// NewIntervalLimiter allows one request per spacing. A non-positive spacing
// disables limiting. A nil clock uses the system clock.
func NewIntervalLimiter(spacing time.Duration, clk clock.Clock) *IntervalLimiter {
	if clk == nil {
		clk = clock.Real{}
	}
	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	return &IntervalLimiter{
		lim:     rate.NewLimiter(limit, 1),
		clk:     clk,
		spacing: spacing,
	}
}

// Spacing returns the configured minimum interval.
func (l *IntervalLimiter) Spacing() time.Duration {
	return l.spacing
}

// Wait blocks until the next request may be sent or ctx is done.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	now := l.clk.Now()
	r := l.lim.ReserveN(now, 1)
	if !r.OK() {
		return eris.New("limiter: reservation exceeds burst")
	}
	d := r.DelayFrom(now)
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		r.CancelAt(l.clk.Now())
		return ctx.Err()
	case <-l.clk.After(d):
		return nil
	}
}
