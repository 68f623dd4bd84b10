package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastConfig records requested sleeps instead of sleeping.
func fastConfig(attempts int, slept *[]time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
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

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	var slept []time.Duration
	err := Do(context.Background(), fastConfig(3, &slept), func(_ context.Context) error {
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
	if len(slept) != 2 {
		t.Errorf("expected 2 sleeps, got %d", len(slept))
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	var slept []time.Duration
	err := Do(context.Background(), fastConfig(3, &slept), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 {
		t.Errorf("no sleep after the last attempt: got %d sleeps", len(slept))
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	var slept []time.Duration
	err := Do(context.Background(), fastConfig(3, &slept), func(_ context.Context) error {
		calls++
		return errors.New("bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("temporary"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call after cancel, got %d", calls)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	var slept []time.Duration
	v, err := DoVal(context.Background(), fastConfig(3, &slept), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("timeout"), 504)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %q", v)
	}
}

func TestDoVal_HonorsRetryAfter(t *testing.T) {
	var slept []time.Duration
	var calls int
	_, err := DoVal(context.Background(), fastConfig(2, &slept), func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, &TransientError{Err: errors.New("429"), StatusCode: 429, RetryAfter: 700 * time.Millisecond}
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slept) != 1 || slept[0] != 700*time.Millisecond {
		t.Errorf("expected a single 700ms sleep, got %v", slept)
	}
}

func TestDoVal_RetryAfterCappedByMaxBackoff(t *testing.T) {
	var slept []time.Duration
	var calls int
	_, _ = DoVal(context.Background(), fastConfig(2, &slept), func(_ context.Context) (int, error) {
		calls++
		return 0, &TransientError{Err: errors.New("429"), StatusCode: 429, RetryAfter: time.Hour}
	})
	if len(slept) != 1 || slept[0] != time.Second {
		t.Errorf("expected sleep capped at 1s, got %v", slept)
	}
}

func TestDo_OnRetryCalled(t *testing.T) {
	var attempts []int
	var slept []time.Duration
	cfg := fastConfig(3, &slept)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("x"), 502)
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected OnRetry attempts: %v", attempts)
	}
}

func TestComputeBackoff_Caps(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, Multiplier: 2})
	if d := computeBackoff(0, cfg); d < 750*time.Millisecond || d > 1250*time.Millisecond {
		t.Errorf("attempt 0 out of jitter range: %v", d)
	}
	cfg.JitterFraction = 0
	if d := computeBackoff(10, cfg); d != 4*time.Second {
		t.Errorf("expected cap at 4s, got %v", d)
	}
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 100, 2000)
	if cfg.MaxAttempts != 5 || cfg.InitialBackoff != 100*time.Millisecond || cfg.MaxBackoff != 2*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}
	def := FromRetryConfig(0, 0, 0)
	if def.MaxAttempts != 3 || def.InitialBackoff != 500*time.Millisecond {
		t.Errorf("defaults not kept: %+v", def)
	}
}
