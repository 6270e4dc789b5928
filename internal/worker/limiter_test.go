package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "sonnet"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different key should also work
	if err := limiter.Wait(ctx, "haiku"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "sonnet"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Burst 1 is consumed
	if limiter.Allow("sonnet") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Different key should be allowed
	if !limiter.Allow("haiku") {
		t.Errorf("expected allow for other key")
	}
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	limiter := NewLimiter(0.1, 1)
	if err := limiter.Wait(context.Background(), "sonnet"); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, "sonnet"); err == nil {
		t.Errorf("expected error when the deadline is shorter than the refill")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("sonnet") {
			t.Fatalf("disabled limiter rejected call %d", i)
		}
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Wait(context.Background(), "sonnet"); err != nil {
		t.Errorf("nil limiter should not block: %v", err)
	}
}

func TestLimiter_SetKeyRate(t *testing.T) {
	limiter := NewLimiter(10, 10) // fast default

	// Strict limit for one model
	limiter.SetKeyRate("opus", 0.1, 1)

	if !limiter.Allow("opus") {
		t.Errorf("first request should pass")
	}

	if limiter.Allow("opus") {
		t.Errorf("second request should fail")
	}

	if !limiter.Allow("haiku") {
		t.Errorf("other key should pass")
	}
}
