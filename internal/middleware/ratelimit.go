package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/samber/lo"
)

const cleanupInterval = 1 * time.Minute

// RateLimiter wraps an http.Handler with sliding-window rate limiting per
// client IP. Document uploads carry multi-megabyte bodies, so the intake
// API is a cheap target without one.
type RateLimiter struct {
	limit       int
	window      time.Duration
	exemptPaths map[string]bool

	mu          sync.Mutex
	requests    map[string][]time.Time
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// NewRateLimiter creates a limiter allowing limit requests per window per
// IP. Paths in exempt bypass limiting (health checks, probes). Close must
// be called on shutdown to stop the cleanup goroutine.
func NewRateLimiter(limit int, window time.Duration, exempt []string) (*RateLimiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}

	rl := &RateLimiter{
		limit:       limit,
		window:      window,
		exemptPaths: lo.SliceToMap(exempt, func(p string) (string, bool) { return p, true }),
		requests:    make(map[string][]time.Time),
		cleanupDone: make(chan struct{}),
	}
	go rl.cleanupLoop()

	slog.Info("rate limiter initialized", "limit", limit, "window", window.String())
	return rl, nil
}

// Middleware wraps next with rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exemptPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		ip := ExtractIP(r)
		if ip == "" {
			slog.Warn("failed to extract IP from request", "path", r.URL.Path)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		allowed, oldest := rl.allow(ip)
		if !allowed {
			retryAfter := int(rl.window.Seconds() - time.Since(oldest).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			slog.Debug("rate limit exceeded", "ip", ip, "path", r.URL.Path, "limit", rl.limit)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow records the request unless the IP's window is full. When full it
// returns the oldest in-window timestamp for Retry-After computation.
func (rl *RateLimiter) allow(ip string) (bool, time.Time) {
	now := time.Now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := inWindow(rl.requests[ip], cutoff)
	if len(valid) >= rl.limit {
		return false, valid[0]
	}
	rl.requests[ip] = append(valid, now)
	return true, time.Time{}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.cleanupDone:
			return
		}
	}
}

// cleanup drops IPs with no in-window requests so the map does not grow
// without bound.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, timestamps := range rl.requests {
		valid := inWindow(timestamps, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, ip)
		} else {
			rl.requests[ip] = valid
		}
	}
}

func inWindow(timestamps []time.Time, cutoff time.Time) []time.Time {
	return lo.Filter(timestamps, func(ts time.Time, _ int) bool {
		return ts.After(cutoff)
	})
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.cleanupDone)
	})
}
