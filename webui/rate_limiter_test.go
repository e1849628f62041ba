package webui

import (
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func withClock(r *RateLimiter, c *fakeClock) *RateLimiter {
	r.now = c.now
	return r
}

func TestRateLimiter_Allow(t *testing.T) {
	clock := newFakeClock()
	rl := withClock(NewRateLimiter(10*time.Second, 2), clock)

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}

	ok, wait := rl.Allow("1.2.3.4")
	if ok {
		t.Fatal("third request should be limited")
	}
	if wait <= 0 || wait > 11*time.Second {
		t.Errorf("retry wait = %v, want about 10s", wait)
	}

	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Error("other IPs have their own bucket")
	}

	clock.advance(10 * time.Second)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Error("token should refill after the interval")
	}
}

func TestRateLimiter_RejectedRequestDoesNotConsume(t *testing.T) {
	clock := newFakeClock()
	rl := withClock(NewRateLimiter(time.Minute, 1), clock)

	rl.Allow("ip")
	for i := 0; i < 5; i++ {
		rl.Allow("ip")
	}
	clock.advance(time.Minute)
	if ok, _ := rl.Allow("ip"); !ok {
		t.Error("rejected requests must not push the refill further out")
	}
}

func TestRateLimiter_LoginAttempts(t *testing.T) {
	clock := newFakeClock()
	rl := withClock(NewRateLimiter(time.Minute, 3), clock)

	if blocked, _ := rl.Blocked("ip"); blocked {
		t.Fatal("unknown IP must not be blocked")
	}
	for i := 0; i < 3; i++ {
		rl.RecordAttempt("ip")
	}
	blocked, wait := rl.Blocked("ip")
	if !blocked {
		t.Fatal("IP should be blocked after 3 failed attempts")
	}
	if wait <= 0 || wait > time.Minute+time.Second {
		t.Errorf("wait = %v, want about 1m", wait)
	}

	rl.Reset("ip")
	if blocked, _ := rl.Blocked("ip"); blocked {
		t.Error("Reset should unblock the IP")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	rl := withClock(NewRateLimiter(time.Second, 1), clock)

	rl.Allow("old")
	clock.advance(10 * time.Minute)
	rl.Allow("new")

	if removed := rl.Cleanup(5 * time.Minute); removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if rl.Count() != 1 {
		t.Errorf("Count() = %d, want 1", rl.Count())
	}
}

func TestNewPerMinuteLimiter(t *testing.T) {
	if NewPerMinuteLimiter(0) != nil {
		t.Error("zero rate should disable limiting")
	}
	rl := NewPerMinuteLimiter(30)
	if rl == nil || rl.burst != 30 {
		t.Fatalf("NewPerMinuteLimiter(30) = %+v", rl)
	}
}
