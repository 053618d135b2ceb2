package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sells-group/prerace-cli/internal/clock"
)

func fakeClock() *clock.Fake {
	return clock.NewFake(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
}

// retryErr runs an error-only fn through DoVal.
func retryErr(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := retryErr(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SuccessAfterRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
		Clock:          fakeClock(),
	}

	err := retryErr(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
		Clock:          fakeClock(),
	}

	err := retryErr(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_PermanentError_NoRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		Clock:          fakeClock(),
	}

	err := retryErr(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewPermanentError(errors.New("malformed body"), 200)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for permanent), got %d", calls)
	}
	if !errors.Is(err, ErrPermanentSource) {
		t.Errorf("expected ErrPermanentSource, got %v", err)
	}
}

func TestRetry_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}

	err := retryErr(ctx, cfg, func(_ context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before cancel stopped retries, got %d", calls)
	}
}

func TestRetry_CustomShouldRetry(t *testing.T) {
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		Clock:          fakeClock(),
		ShouldRetry: func(err error) bool {
			return err.Error() == "retry me"
		},
	}

	err := retryErr(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("retry me")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var retryAttempts []int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		Clock:          fakeClock(),
		OnRetry: func(attempt int, _ error) {
			retryAttempts = append(retryAttempts, attempt)
		},
	}

	_ = retryErr(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("fail"), 500)
	})

	if len(retryAttempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(retryAttempts))
	}
	if retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", retryAttempts)
	}
}

func TestDoVal_ReturnsValueOnSuccess(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.Clock = fakeClock()

	var calls int
	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewTransientError(errors.New("fail"), 500)
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "hello" {
		t.Errorf("expected %q, got %q", "hello", val)
	}
}

func TestDoVal_ReturnsZeroOnFailure(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: 1 * time.Millisecond,
		Clock:          fakeClock(),
	}

	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 42, NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if val != 0 {
		t.Errorf("expected zero value on failure, got %d", val)
	}
}

func TestRetry_DefaultConfig(t *testing.T) {
	var calls atomic.Int32
	cfg := RetryConfig{} // all zero values

	err := retryErr(context.Background(), cfg, func(_ context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestRun_AtMostKAttempts(t *testing.T) {
	for k := 1; k <= 5; k++ {
		clk := fakeClock()
		cfg := RetryConfig{MaxAttempts: k, InitialBackoff: 100 * time.Millisecond, Clock: clk}

		var calls int
		_, stats, err := Run(context.Background(), cfg, func(_ context.Context) (int, error) {
			calls++
			return 0, NewTransientError(errors.New("down"), 503)
		})
		if err == nil {
			t.Fatalf("k=%d: expected error", k)
		}
		if calls != k || stats.Attempts != k {
			t.Errorf("k=%d: expected %d attempts, got calls=%d stats=%d", k, k, calls, stats.Attempts)
		}
		if len(stats.Delays) != k-1 {
			t.Errorf("k=%d: expected %d delays, got %d", k, k-1, len(stats.Delays))
		}
		if len(clk.Sleeps()) != k-1 {
			t.Errorf("k=%d: expected clock to sleep %d times, got %d", k, k-1, len(clk.Sleeps()))
		}
	}
}

func TestRun_AttemptTimeoutIsTransient(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		AttemptTimeout: 10 * time.Millisecond,
		Clock:          fakeClock(),
	}

	var calls int
	_, stats, err := Run(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if stats.Attempts != 2 {
		t.Errorf("expected timeout to be retried, got %d attempts", stats.Attempts)
	}
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}

	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	for i, want := range expected {
		if got := Backoff(i, cfg); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestBackoff_NonDecreasing(t *testing.T) {
	configs := []RetryConfig{
		{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2},
		{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 10},
		{InitialBackoff: 300 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 1.5},
		{InitialBackoff: 50 * time.Millisecond, MaxBackoff: time.Hour, Multiplier: 1},
	}
	for _, cfg := range configs {
		prev := time.Duration(0)
		for attempt := 0; attempt < 50; attempt++ {
			d := Backoff(attempt, cfg)
			if d < prev {
				t.Fatalf("backoff decreased at attempt %d: %v < %v (cfg %+v)", attempt, d, prev, cfg)
			}
			if d > cfg.MaxBackoff {
				t.Fatalf("backoff %v exceeds max %v", d, cfg.MaxBackoff)
			}
			prev = d
		}
	}
}

func TestRun_JitterStaysAboveBase(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
		Clock:          fakeClock(),
	}

	_, stats, _ := Run(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("fail"), 500)
	})
	for i, d := range stats.Delays {
		base := Backoff(i, cfg)
		if d < base || d > base+base/2 {
			t.Errorf("delay %d = %v outside [%v, %v]", i, d, base, base+base/2)
		}
	}
}

func TestRun_JitterVaries(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, JitterFraction: 0.5})

	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		seen[jitter(time.Second, cfg)] = true
	}
	if len(seen) < 2 {
		t.Error("expected jitter to produce varying delays")
	}
}

func TestRetryLogger(t *testing.T) {
	t.Parallel()
	logger := RetryLogger("odds", "fetch")
	logger(1, errors.New("test error"))
}
