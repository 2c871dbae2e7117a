package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
		ClientTimeout:     time.Minute,
	})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		allowed, _, _ := rl.Allow("10.0.0.1")
		if !allowed {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	allowed, _, _ := rl.Allow("10.0.0.1")
	if allowed {
		t.Fatal("request beyond burst should be rejected")
	}
}

func TestRateLimiterMiddlewareReturns429WhenExhausted(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
		ClientTimeout:     time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request should succeed, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate limited, got %d", second.Code)
	}
	if got := second.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Errorf("expected X-RateLimit-Limit 1 on the 429 response, got %q", got)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header on the 429 response")
	}
}

func TestRateLimiterPerClientIsolation(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
		ClientTimeout:     time.Minute,
	})
	defer rl.Stop()

	allowedA, _, _ := rl.Allow("10.0.0.3")
	allowedB, _, _ := rl.Allow("10.0.0.4")
	if !allowedA || !allowedB {
		t.Fatal("distinct clients should each get their own bucket")
	}
}
