package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aacassist/security-core/internal/auth"
)

// RateLimiter is a fixed-window in-memory limiter keyed by an arbitrary
// string. Expired windows are swept by a background goroutine.
type RateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*rateWindow
	limit    int
	interval time.Duration
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a limiter allowing limit events per interval per key
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:  make(map[string]*rateWindow),
		limit:    limit,
		interval: interval,
	}
	go rl.sweep()
	return rl
}

// Allow reports whether the key may proceed and counts the event if so
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	win, ok := rl.windows[key]
	if !ok || now.After(win.resetAt) {
		rl.windows[key] = &rateWindow{count: 1, resetAt: now.Add(rl.interval)}
		return true
	}

	if win.count >= rl.limit {
		return false
	}

	win.count++
	return true
}

// Remaining returns how many events the key has left in the current window
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	win, ok := rl.windows[key]
	if !ok || time.Now().After(win.resetAt) {
		return rl.limit
	}

	remaining := rl.limit - win.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset returns when the key's current window expires
func (rl *RateLimiter) Reset(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if win, ok := rl.windows[key]; ok {
		return win.resetAt
	}
	return time.Now()
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		rl.mu.Lock()
		for key, win := range rl.windows {
			if now.After(win.resetAt) {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// LoginRateLimiter throttles credential endpoints per client IP. This is a
// transport-level brake on top of the per-account lockout, which it does
// not replace.
func LoginRateLimiter(limit int, interval time.Duration) func(http.Handler) http.Handler {
	rl := NewRateLimiter(limit, interval)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !rl.Allow(key) {
				reset := rl.Reset(key)
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))
				writeRateLimitError(w)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeRateLimitError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	resp := auth.APIResponse{
		Success: false,
		Error: &auth.APIError{
			Code:    "RATE_LIMITED",
			Message: "Too many requests, slow down",
		},
		Timestamp: time.Now().UTC(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}
