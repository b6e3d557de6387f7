package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroRPS(t *testing.T) {
	limiter := NewLimiter(0, 1, 0.5)
	if limiter.Enabled() {
		t.Error("expected disabled limiter")
	}

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("limiter with 0 RPS should not block")
	}
}

func TestLimiter_NilIsDisabled(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(10, 1, 0) // 100ms interval
	ctx := context.Background()

	// the bucket starts full
	_ = limiter.Wait(ctx)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d := time.Since(start); d < 50*time.Millisecond || d > 150*time.Millisecond {
		t.Errorf("expected wait around 100ms, took %v", d)
	}
}

func TestLimiter_Burst(t *testing.T) {
	limiter := NewLimiter(1, 3, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("burst of 3 should not block, took %v", d)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(1, 1, 0)
	_ = limiter.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestLimiter_Jitter(t *testing.T) {
	limiter := NewLimiter(10, 1, 0.5) // 100ms interval, up to 50ms extra
	ctx := context.Background()

	_ = limiter.Wait(ctx)

	start := time.Now()
	_ = limiter.Wait(ctx)

	// Allow some slack for goroutine scheduling.
	if d := time.Since(start); d < 50*time.Millisecond || d > 300*time.Millisecond {
		t.Errorf("expected jittered wait between 100ms and 150ms, took %v", d)
	}
}
