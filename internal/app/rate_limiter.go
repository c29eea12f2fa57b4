package app

import (
	"time"

	"github.com/dkeye/cardlobby/internal/domain"
)

// RateLimiter is a sliding-window limiter keyed by user.
type RateLimiter struct {
	history  *stripedMap[domain.UserID, []time.Time]
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  newStripedMap[domain.UserID, []time.Time](),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow records an attempt and reports whether it fits in the window.
// A nil limiter or a non-positive limit allows everything.
func (rl *RateLimiter) Allow(uid domain.UserID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	now := rl.now()
	windowStart := now.Add(-rl.interval)
	allowed := false

	rl.history.Update(uid, func(attempts []time.Time, _ bool) ([]time.Time, bool) {
		fresh := rl.prune(attempts, windowStart)
		if len(fresh) >= rl.limit {
			return fresh, true
		}
		allowed = true
		return append(fresh, now), true
	})
	return allowed
}

func (rl *RateLimiter) prune(attempts []time.Time, windowStart time.Time) []time.Time {
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	return fresh
}

// Sweep drops users with no attempts left in the window.
func (rl *RateLimiter) Sweep() int {
	if rl == nil || rl.limit <= 0 {
		return 0
	}
	windowStart := rl.now().Add(-rl.interval)
	dropped := 0
	for _, uid := range rl.history.Keys() {
		rl.history.Update(uid, func(attempts []time.Time, ok bool) ([]time.Time, bool) {
			if !ok {
				return nil, false
			}
			fresh := rl.prune(attempts, windowStart)
			if len(fresh) == 0 {
				dropped++
				return nil, false
			}
			return fresh, true
		})
	}
	return dropped
}

func (rl *RateLimiter) Len() int {
	if rl == nil {
		return 0
	}
	return rl.history.Len()
}
