package middleware

import (
	"net/http"
	"sync"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/httputil"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	cleanupInterval = time.Minute
	entryTTL        = 10 * time.Minute
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	store       map[string]*limiterEntry
	lastCleanup time.Time
	now         func() time.Time
}

// NewRateLimiter allows perSecond events per key with the given burst
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:       rate.Limit(perSecond),
		burst:       burst,
		store:       make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether key may proceed now and consumes a token if so
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanup(now)

	entry, ok := rl.store[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.store[key] = entry
	}
	entry.lastAccess = now

	return entry.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) cleanup(now time.Time) {
	if now.Sub(rl.lastCleanup) < cleanupInterval {
		return
	}
	rl.lastCleanup = now

	for key, entry := range rl.store {
		if now.Sub(entry.lastAccess) > entryTTL {
			delete(rl.store, key)
		}
	}
}

// Handler throttles authenticated requests per user
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := GetUserID(r.Context())
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.Allow(userID) {
			log.Warn().Str("user_id", userID).Msg("Rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, apperrors.RateLimited())
			return
		}

		next.ServeHTTP(w, r)
	})
}
