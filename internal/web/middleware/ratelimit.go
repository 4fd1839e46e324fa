package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/catalog/internal/logging"
)

const limiterIdleTTL = 10 * time.Minute

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key, normally the client IP.
// Buckets idle for ten minutes are dropped.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*keyedLimiter
	limit     rate.Limit
	burst     int
	perMinute int
	now       func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewKeyedRateLimiter allows perMinute requests per key per minute, with
// bursts of the same size.
func NewKeyedRateLimiter(perMinute int) *KeyedRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	krl := &KeyedRateLimiter{
		limiters:  make(map[string]*keyedLimiter),
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     perMinute,
		perMinute: perMinute,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	go krl.cleanupLoop()
	return krl
}

// Allow reports whether a request for key may proceed now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	krl.mu.Lock()
	entry, ok := krl.limiters[key]
	if !ok {
		entry = &keyedLimiter{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.limiters[key] = entry
	}
	now := krl.now()
	entry.lastSeen = now
	krl.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// retryAfter is the number of whole seconds until one token is available.
func (krl *KeyedRateLimiter) retryAfter() int {
	return (60 + krl.perMinute - 1) / krl.perMinute
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.Lock()
	defer krl.mu.Unlock()
	return len(krl.limiters)
}

// Stop ends the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() { close(krl.done) })
}

func (krl *KeyedRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.cleanup()
		}
	}
}

func (krl *KeyedRateLimiter) cleanup() {
	cutoff := krl.now().Add(-limiterIdleTTL)
	krl.mu.Lock()
	defer krl.mu.Unlock()
	for key, entry := range krl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(krl.limiters, key)
		}
	}
}

// RateLimit rejects requests over the client's budget with 429.
func RateLimit(krl *KeyedRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !krl.Allow(ip) {
				logging.FromContext(r.Context()).Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(krl.retryAfter()))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "Please wait a moment before trying again", "RATE001")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
