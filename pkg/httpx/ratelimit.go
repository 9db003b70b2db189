package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iris-platform/identity/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig describes one rate limit profile as a sustained window
// rate plus a burst allowance.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Rate limit profiles. Credential endpoints are capped far tighter than
// the general API to slow down credential stuffing.
var (
	// AuthLimit applies to register, login, refresh, and logout.
	AuthLimit = RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            15 * time.Minute,
		Burst:             5,
	}

	// GeneralLimit applies to every other route.
	GeneralLimit = RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            15 * time.Minute,
		Burst:             100,
	}
)

// KeyExtractor derives the bucket key for a request. An empty key means
// the request cannot be attributed and is let through.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the client IP, preferring proxy headers over the
// socket peer so limits survive a load balancer hop.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// rateLimiter holds one token bucket per key.
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int

	lastSweep time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	return &rateLimiter{
		buckets:   make(map[string]*rate.Limiter),
		rate:      rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:     cfg.Burst,
		lastSweep: time.Now(),
	}
}

func (rl *rateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastSweep) >= 5*time.Minute {
		rl.sweepLocked()
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = rate.NewLimiter(rl.rate, rl.burst)
		rl.buckets[key] = b
	}
	return b
}

// sweepLocked drops buckets that have refilled completely; a full bucket
// means the key has been idle for at least one window.
func (rl *rateLimiter) sweepLocked() {
	rl.lastSweep = time.Now()
	for key, b := range rl.buckets {
		if b.Tokens() >= float64(rl.burst) {
			delete(rl.buckets, key)
		}
	}
}

// RateLimitMiddleware enforces cfg per key. Exceeding the limit yields a
// 429 with Retry-After set from the bucket's refill estimate.
func RateLimitMiddleware(cfg RateLimitConfig, keyFn KeyExtractor) Middleware {
	rl := newRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyFn(r)
			if key == "" {
				log.Warn("rate limit: no key for request, allowing")
				next.ServeHTTP(w, r)
				return
			}

			b := rl.bucket(key)
			if !b.Allow() {
				res := b.Reserve()
				delay := res.Delay()
				res.Cancel() // only needed the wait estimate

				retryAfter := max(int(delay.Seconds()), 1)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Window", cfg.Window.String())

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error": "too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP enforces cfg per client IP.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}
