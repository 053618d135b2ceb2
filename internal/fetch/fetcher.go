// Package fetch wraps a source client with the retry, timeout and request
// spacing policy used during collection.
package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/clock"
	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resilience"
	"github.com/sells-group/prerace-cli/internal/source"
)

// SourceFailure describes why a source produced no record.
type SourceFailure struct {
	Kind     model.SourceKind
	Class    resilience.Class
	Attempts int
	Err      error
}

func (f *SourceFailure) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s): %v", f.Kind, f.Class, f.Attempts, f.Err)
}

func (f *SourceFailure) Unwrap() error { return f.Err }

// Result is the outcome of one Fetch. Exactly one of Record and Failure is set.
type Result struct {
	Kind     model.SourceKind
	Record   *model.SourceRecord
	Failure  *SourceFailure
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether a record was obtained.
func (r Result) OK() bool { return r.Record != nil }

// Fetcher retries transient failures of one source with backoff and enforces
// a minimum spacing between consecutive requests. Calls on one Fetcher are
// serialized.
type Fetcher struct {
	client  source.Client
	retry   resilience.RetryConfig
	limiter *resilience.IntervalLimiter
	spacing time.Duration
	clk     clock.Clock
	sem     chan struct{}
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock injects the clock used for backoff, spacing and timing.
func WithClock(clk clock.Clock) Option {
	return func(f *Fetcher) {
		f.clk = clk
	}
}

// WithMinSpacing sets the minimum interval between consecutive requests.
func WithMinSpacing(d time.Duration) Option {
	return func(f *Fetcher) {
		f.spacing = d
	}
}

// New creates a Fetcher for client using the retry policy cfg.
func New(client source.Client, cfg resilience.RetryConfig, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: client,
		retry:  cfg,
		clk:    clock.Real{},
		sem:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.limiter = resilience.NewIntervalLimiter(f.spacing, f.clk)
	f.retry.Clock = f.clk
	if f.retry.OnRetry == nil {
		f.retry.OnRetry = resilience.RetryLogger(string(client.Kind()), "fetch")
	}
	return f
}

// Kind returns the source this fetcher reads.
func (f *Fetcher) Kind() model.SourceKind { return f.client.Kind() }

// Fetch obtains the event's record from the source. It never returns an
// error: failures are reported in Result.Failure with their class.
func (f *Fetcher) Fetch(ctx context.Context, eventID string) Result {
	kind := f.client.Kind()
	start := f.clk.Now()
	log := zap.L().With(zap.String("source", string(kind)), zap.String("event_id", eventID))

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		return f.failed(kind, resilience.ClassTransient, 0, ctx.Err(), start)
	}

	rec, stats, err := resilience.Run(ctx, f.retry, func(attemptCtx context.Context) (*model.SourceRecord, error) {
		if werr := f.limiter.Wait(attemptCtx); werr != nil {
			return nil, werr
		}
		return f.client.Fetch(attemptCtx, eventID)
	})
	if err != nil {
		class := resilience.Classify(err)
		log.Warn("fetch: source failed",
			zap.String("class", string(class)),
			zap.Int("attempts", stats.Attempts),
			zap.Error(err),
		)
		return f.failed(kind, class, stats.Attempts, err, start)
	}

	elapsed := f.clk.Now().Sub(start)
	log.Debug("fetch: source ok",
		zap.Int("attempts", stats.Attempts),
		zap.Int("rows", len(rec.Rows)),
		zap.Duration("elapsed", elapsed),
	)
	return Result{Kind: kind, Record: rec, Attempts: stats.Attempts, Elapsed: elapsed}
}

func (f *Fetcher) failed(kind model.SourceKind, class resilience.Class, attempts int, err error, start time.Time) Result {
	return Result{
		Kind:     kind,
		Failure:  &SourceFailure{Kind: kind, Class: class, Attempts: attempts, Err: err},
		Attempts: attempts,
		Elapsed:  f.clk.Now().Sub(start),
	}
}
