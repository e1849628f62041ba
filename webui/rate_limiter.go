package webui

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. The server uses it to
// throttle video uploads, and the auth package uses a second instance to
// slow down password guessing.
//
// Thread-safe.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows burst events immediately and then one event every
// interval per IP.
func NewRateLimiter(interval time.Duration, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(interval),
		burst:    burst,
		now:      time.Now,
	}
}

// NewPerMinuteLimiter allows n events per minute per IP. n <= 0 returns nil,
// which callers treat as "no limit".
func NewPerMinuteLimiter(n int) *RateLimiter {
	if n <= 0 {
		return nil
	}
	return NewRateLimiter(time.Minute/time.Duration(n), n)
}

func (r *RateLimiter) get(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[ip] = v
	}
	v.lastSeen = r.now()
	return v.limiter
}

// Allow consumes one token for ip. When none is available it returns false
// and how long until one will be.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	lim := r.get(ip)
	now := r.now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Blocked reports whether ip has no token left, without consuming one.
func (r *RateLimiter) Blocked(ip string) (bool, time.Duration) {
	r.mu.Lock()
	v, ok := r.visitors[ip]
	r.mu.Unlock()
	if !ok {
		return false, 0
	}

	tokens := v.limiter.TokensAt(r.now())
	if tokens >= 1 {
		return false, 0
	}
	wait := time.Duration((1 - tokens) / float64(r.limit) * float64(time.Second))
	return true, wait
}

// RecordAttempt consumes a token if one is left. Used for failed logins.
func (r *RateLimiter) RecordAttempt(ip string) {
	r.get(ip).AllowN(r.now(), 1)
}

// Reset forgets ip, e.g. after a successful login.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.visitors, ip)
	r.mu.Unlock()
}

// Cleanup removes visitors idle for longer than maxIdle and returns how
// many were dropped.
func (r *RateLimiter) Cleanup(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for ip, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(r.visitors, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup every interval until ctx is cancelled.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup(maxIdle)
			}
		}
	}()
}

// Count returns the number of tracked IPs.
func (r *RateLimiter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}
