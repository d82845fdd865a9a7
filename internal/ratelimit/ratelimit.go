// Package ratelimit throttles write endpoints with a token bucket per caller.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shortsfeed/shortsfeed/internal/geoip"
)

const (
	cleanupInterval = 5 * time.Minute
	idleExpiry      = 10 * time.Minute
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(r *http.Request) string

// ByClientIP keys by the caller's address. Device ids are not used: a client
// that drops its cookie is minted a new one on every request.
func ByClientIP(r *http.Request) string {
	return "ip:" + geoip.ClientIP(r)
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	key     KeyFunc
	now     func() time.Time
}

func NewLimiter(requestsPerSecond float64, burst int, key KeyFunc) *Limiter {
	if key == nil {
		key = ByClientIP
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    requestsPerSecond,
		burst:   float64(burst),
		key:     key,
		now:     time.Now,
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.burst - 1, lastSeen: now}
		return l.burst >= 1
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// StartCleanup drops idle buckets until ctx is done.
func (l *Limiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleExpiry {
			delete(l.buckets, k)
		}
	}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.key(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
