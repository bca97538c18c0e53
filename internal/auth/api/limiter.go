package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginLimiter throttles login attempts per client IP. Idle entries are
// dropped after a minute so the map stays bounded.
type loginLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    rate.Limit
	burst   int
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLoginLimiter(ratePerSec float64, burst int) *loginLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	return &loginLimiter{
		clients: make(map[string]*client),
		rate:    rate.Limit(ratePerSec),
		burst:   burst,
	}
}

// allow reports whether ip may attempt a login now. A nil limiter admits
// everything.
func (l *loginLimiter) allow(ip string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now

	if len(l.clients) > 1024 {
		for k, v := range l.clients {
			if now.Sub(v.lastSeen) > time.Minute {
				delete(l.clients, k)
			}
		}
	}
	return c.limiter.Allow()
}
