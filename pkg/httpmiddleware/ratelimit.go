package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig controls the per-client limiter.
type RateLimitConfig struct {
	// RPS is the sustained allowance per client, in requests per second.
	RPS float64
	// Burst is the instantaneous allowance per client.
	Burst int
	// ClientTTL is how long an idle client's limiter is retained before the
	// cleanup sweep drops it. Zero defaults to 10 minutes.
	ClientTTL time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func (l *rateLimiter) allow(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[clientKey]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.clients[clientKey] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

func (l *rateLimiter) sweep() {
	cutoff := time.Now().Add(-l.cfg.ClientTTL)
	l.mu.Lock()
	for key, cl := range l.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
	l.mu.Unlock()
}

// RateLimitWithCleanup returns a middleware that limits each client to a
// token-bucket allowance, keyed by remote IP. Idle client state is swept
// periodically until ctx is done. Rejected requests get 429 Too Many
// Requests.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.ClientTTL <= 0 {
		cfg.ClientTTL = 10 * time.Minute
	}
	l := &rateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
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

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientKey(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
