package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		Backoff:     time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultPolicy(), func(_ context.Context) error {
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

func TestDo_OneRetryThenSuccess(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(2), func(_ context.Context) error {
		calls++
		if calls == 1 {
			return NewTransientError(errors.New("temporary"), 503)
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

func TestDo_AttemptsAreBounded(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(2), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastPolicy(3), func(_ context.Context) error {
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

func TestDo_CanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, fastPolicy(5), func(_ context.Context) error {
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

func TestDo_ShouldRetryOverride(t *testing.T) {
	var calls int
	p := fastPolicy(3)
	p.ShouldRetry = func(error) bool { return true }

	_ = Do(context.Background(), p, func(_ context.Context) error {
		calls++
		return errors.New("plain")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_OnRetryCalled(t *testing.T) {
	var attempts []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), p, func(_ context.Context) error {
		return NewTransientError(errors.New("x"), 502)
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected retry attempts: %v", attempts)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	got, err := DoVal(context.Background(), fastPolicy(2), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("timeout"), 0)
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "done" {
		t.Errorf("expected done, got %q", got)
	}
}

func TestDoVal_ZeroValueOnFailure(t *testing.T) {
	got, err := DoVal(context.Background(), fastPolicy(1), func(_ context.Context) (int, error) {
		return 7, errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got != 0 {
		t.Errorf("expected zero value, got %d", got)
	}
}

func TestPolicy_WithDefaults(t *testing.T) {
	p := Policy{}.withDefaults()
	if p.MaxAttempts != 2 {
		t.Errorf("expected 2 attempts, got %d", p.MaxAttempts)
	}
	if p.Backoff != time.Second {
		t.Errorf("expected 1s backoff, got %s", p.Backoff)
	}
}

func TestPolicy_DelayCapped(t *testing.T) {
	p := Policy{Backoff: time.Second, MaxBackoff: 3 * time.Second}.withDefaults()
	if d := p.delay(0); d != time.Second {
		t.Errorf("attempt 0: expected 1s, got %s", d)
	}
	if d := p.delay(1); d != 2*time.Second {
		t.Errorf("attempt 1: expected 2s, got %s", d)
	}
	if d := p.delay(5); d != 3*time.Second {
		t.Errorf("attempt 5: expected cap 3s, got %s", d)
	}
}

func TestPolicy_DelayJitterWithinRange(t *testing.T) {
	p := Policy{Backoff: time.Second, MaxBackoff: time.Minute, Jitter: 0.5}.withDefaults()
	for i := 0; i < 50; i++ {
		d := p.delay(0)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("delay %s outside jitter range", d)
		}
	}
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy(3, "sambanova", "chat")
	if p.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", p.MaxAttempts)
	}
	if p.OnRetry == nil {
		t.Error("expected retry logger")
	}

	if got := NewPolicy(0, "sambanova", "chat").MaxAttempts; got != 2 {
		t.Errorf("expected default 2 attempts, got %d", got)
	}
}
