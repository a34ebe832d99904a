package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow("key") {
			t.Fatalf("request %d denied under the limit", i+1)
		}
	}
	if rl.Allow("key") {
		t.Fatal("request over the limit allowed")
	}
	if rl.Remaining("key") != 0 {
		t.Fatalf("remaining: got %d, want 0", rl.Remaining("key"))
	}

	// Other keys are unaffected.
	if !rl.Allow("other") {
		t.Fatal("independent key denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)

	if !rl.Allow("key") {
		t.Fatal("first request denied")
	}
	if rl.Allow("key") {
		t.Fatal("second request allowed inside window")
	}

	time.Sleep(15 * time.Millisecond)

	if !rl.Allow("key") {
		t.Fatal("request denied after window reset")
	}
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	limiter := LoginRateLimiter(2, time.Hour)

	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
		req.RemoteAddr = "10.0.0.1:1234"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status got %d, want 200", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("missing rate limit header: %v", rec.Header())
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}

	// A different client IP is not throttled.
	req = httptest.NewRequest(http.MethodPost, "/auth/token", nil)
	req.RemoteAddr = "10.0.0.2:1234"

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("other client throttled: status %d", rec.Code)
	}
}
