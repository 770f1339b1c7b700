package aplus

import (
	"testing"
	"time"
)

func TestExportLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewExportLimiter(2, time.Minute)
	defer limiter.Close()
	owner := "owner-10"

	if !limiter.Allow(owner) {
		t.Fatalf("expected first export to be allowed")
	}
	if !limiter.Allow(owner) {
		t.Fatalf("expected second export to be allowed")
	}
	if limiter.Allow(owner) {
		t.Fatalf("expected third export to be blocked")
	}
}

func TestExportLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewExportLimiter(1, time.Minute)
	defer limiter.Close()
	now := time.Unix(1_000, 0)
	limiter.now = func() time.Time { return now }
	owner := "owner-20"

	if !limiter.Allow(owner) {
		t.Fatalf("expected first export to be allowed")
	}
	if limiter.Allow(owner) {
		t.Fatalf("expected second export to be blocked")
	}
	if got := limiter.RetryAfter(owner); got != time.Minute {
		t.Fatalf("RetryAfter = %v, want 1m", got)
	}

	now = now.Add(61 * time.Second)
	if got := limiter.RetryAfter(owner); got != 0 {
		t.Fatalf("RetryAfter = %v after window, want 0", got)
	}
	if !limiter.Allow(owner) {
		t.Fatalf("expected export after window to be allowed")
	}
}

func TestExportLimiterIsPerOwner(t *testing.T) {
	limiter := NewExportLimiter(1, time.Minute)
	defer limiter.Close()

	if !limiter.Allow("owner-30") {
		t.Fatalf("expected first owner to be allowed")
	}
	if !limiter.Allow("owner-31") {
		t.Fatalf("expected second owner to be allowed independently")
	}
	if limiter.Allow("owner-30") {
		t.Fatalf("expected first owner to be blocked after max")
	}
}

func TestExportLimiterCloseIsIdempotent(t *testing.T) {
	limiter := NewExportLimiter(1, time.Minute)
	limiter.Close()
	limiter.Close()
}
