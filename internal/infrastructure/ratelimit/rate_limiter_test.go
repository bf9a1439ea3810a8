package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewRateLimiterUnlimited(t *testing.T) {
	r := NewRateLimiter(0)

	if r.GetQPS() != 0 {
		t.Errorf("expected unlimited (0), got %d", r.GetQPS())
	}
	if !r.Allow() {
		t.Error("unlimited limiter should always allow")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	r := NewRateLimiter(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// 第一个令牌立即可用，之后必须等待
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("first wait should succeed: %v", err)
	}
	if err := r.Wait(ctx); err == nil {
		t.Fatal("expected context deadline to interrupt wait")
	}
}

func TestSetQPS(t *testing.T) {
	r := NewRateLimiter(10)

	r.SetQPS(5)
	if r.GetQPS() != 5 {
		t.Errorf("expected 5, got %d", r.GetQPS())
	}

	r.SetQPS(0)
	if r.GetQPS() != 0 {
		t.Errorf("expected unlimited, got %d", r.GetQPS())
	}
}

func TestDecrease(t *testing.T) {
	r := NewRateLimiter(10)

	r.Decrease(3, 1)
	if r.GetQPS() != 7 {
		t.Errorf("expected 7, got %d", r.GetQPS())
	}

	// 不会低于下限
	r.Decrease(100, 2)
	if r.GetQPS() != 2 {
		t.Errorf("expected floor 2, got %d", r.GetQPS())
	}

	// 无限制状态忽略降速
	u := NewRateLimiter(0)
	u.Decrease(1, 1)
	if u.GetQPS() != 0 {
		t.Errorf("unlimited limiter should ignore Decrease, got %d", u.GetQPS())
	}
}
