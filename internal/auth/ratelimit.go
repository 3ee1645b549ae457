package auth

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// LoginLimiter is a per-client token bucket guarding the login endpoints
// against brute force. It is an explicit object owned by the router, not
// process-global state; tests call Reset between cases.
type LoginLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   int
	perMin  int
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewLoginLimiter creates a limiter allowing burst immediate attempts and
// a refill of perMin attempts per minute per client.
func NewLoginLimiter(burst, perMin int) *LoginLimiter {
	if burst < 1 {
		burst = 1
	}
	if perMin < 1 {
		perMin = 1
	}
	return &LoginLimiter{
		buckets: make(map[string]*bucket),
		burst:   burst,
		perMin:  perMin,
	}
}

// Allow reports whether the client identified by key may attempt a login
// now, consuming one token if so.
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastUpdate: now}
		l.buckets[key] = b
	}

	refill := now.Sub(b.lastUpdate).Minutes() * float64(l.perMin)
	b.tokens += refill
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.lastUpdate = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset clears all buckets.
func (l *LoginLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

// Middleware rejects requests from clients that exhausted their budget
// with 429 before the handler runs.
func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !l.Allow(key) {
			http.Error(w, "Too many attempts, try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by IP; chi's RealIP middleware has
// already resolved proxy headers into RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
