package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/rs/zerolog/log"
)

// idleBucketTTL is how long an untouched bucket is kept
const idleBucketTTL = time.Hour

// bucket is a token bucket holding up to capacity tokens, refilled
// continuously at rate tokens per second
type bucket struct {
	tokens   float64
	capacity float64
	rate     float64
	last     time.Time
}

// decision is the outcome of one take
type decision struct {
	allowed   bool
	remaining int
	// retryAt is when the next token becomes available
	retryAt time.Time
	// resetAt is when the bucket is full again
	resetAt time.Time
}

func newBucket(capacity int, rate float64, now time.Time) *bucket {
	return &bucket{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     rate,
		last:     now,
	}
}

func (b *bucket) take(now time.Time) decision {
	b.tokens = math.Min(b.capacity, b.tokens+now.Sub(b.last).Seconds()*b.rate)
	b.last = now

	d := decision{retryAt: now}
	if b.tokens >= 1 {
		b.tokens--
		d.allowed = true
		d.remaining = int(b.tokens)
	} else {
		d.retryAt = now.Add(seconds((1 - b.tokens) / b.rate))
	}
	d.resetAt = now.Add(seconds((b.capacity - b.tokens) / b.rate))
	return d
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// RateLimiter keeps one bucket per caller. Idle buckets are swept while
// the limiter is in use, so it owns no background goroutine.
type RateLimiter struct {
	policy RateLimitInfo
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter creates a limiter enforcing policy
func NewRateLimiter(policy RateLimitInfo) *RateLimiter {
	return &RateLimiter{
		policy:  policy,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) allow(key string) decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > idleBucketTTL/6 {
		for k, b := range rl.buckets {
			if now.Sub(b.last) > idleBucketTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		rate := float64(rl.policy.MaxRequests) / float64(rl.policy.WindowSeconds)
		b = newBucket(rl.policy.Burst, rate, now)
		rl.buckets[key] = b
	}
	return b.take(now)
}

// RateLimitMiddleware limits each signed-in account to the policy. It runs
// after auth.Middleware; requests without an account are keyed by address.
func RateLimitMiddleware(policy RateLimitInfo) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(policy)
	limit := strconv.Itoa(policy.MaxRequests)
	burst := strconv.Itoa(policy.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := auth.UserID(r.Context())
			if key == "" {
				key = "addr:" + r.RemoteAddr
			}

			d := limiter.allow(key)
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Burst", burst)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.resetAt.Unix(), 10))

			if d.allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(math.Ceil(d.retryAt.Sub(limiter.now()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			log.Ctx(r.Context()).Warn().
				Str("key", key).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("rate limit exceeded")
			writeError(w, r, http.StatusTooManyRequests, codeRateLimited,
				"Too many requests, retry in "+strconv.Itoa(retryAfter)+"s")
		})
	}
}
