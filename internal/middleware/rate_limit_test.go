package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/agentq/internal/ratelimit"
)

// mockLimiter implements ratelimit.Limiter for testing
type mockLimiter struct {
	decision ratelimit.Decision
	err      error
}

func (m *mockLimiter) Allow(ctx context.Context, scope string, subject string, bucket ratelimit.Bucket) (ratelimit.Decision, error) {
	return m.decision, m.err
}

func newSubmitContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/v1/agentq/jobs", nil)
	return ctx, rec
}

func TestRateLimitSubmitDisabledBucket(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false}}
	ctx, _ := newSubmitContext(t)

	RateLimitSubmit(limiter, ratelimit.Bucket{})(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected request to pass through for disabled bucket")
	}
}

func TestRateLimitSubmitAllowed(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: true}}
	ctx, _ := newSubmitContext(t)

	RateLimitSubmit(limiter, ratelimit.Bucket{RequestsPerMinute: 60, BurstSize: 10})(ctx)

	if ctx.IsAborted() {
		t.Fatal("expected allowed request to pass through")
	}
}

func TestRateLimitSubmitDenied(t *testing.T) {
	limiter := &mockLimiter{decision: ratelimit.Decision{Allowed: false, RetryAfter: 3 * time.Second}}
	ctx, rec := newSubmitContext(t)

	RateLimitSubmit(limiter, ratelimit.Bucket{RequestsPerMinute: 60, BurstSize: 10})(ctx)

	if !ctx.IsAborted() {
		t.Fatal("expected denied request to abort")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "3" {
		t.Errorf("Retry-After = %q, want 3", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimitSubmitFailsOpen(t *testing.T) {
	limiter := &mockLimiter{err: context.DeadlineExceeded}
	ctx, _ := newSubmitContext(t)

	RateLimitSubmit(limiter, ratelimit.Bucket{RequestsPerMinute: 60, BurstSize: 10})(ctx)

	if ctx.IsAborted() {
		t.Fatal("limiter errors must fail open")
	}
}
