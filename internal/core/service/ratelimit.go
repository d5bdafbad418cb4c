package service

import (
	"time"

	"github.com/mongoadmin/console/internal/core/domain"
)

// RateLimit is a request budget per fixed window.
type RateLimit struct {
	Limit  int
	Period time.Duration
}

// DefaultActionLimits are the built-in per-action overrides. Actions not
// listed use the rate_limit_requests / rate_limit_window settings.
func DefaultActionLimits() map[string]RateLimit {
	return map[string]RateLimit{
		"login":           {Limit: 10, Period: 5 * time.Minute},
		"register":        {Limit: 5, Period: time.Hour},
		"change_password": {Limit: 5, Period: 15 * time.Minute},
	}
}

// RateLimiter is a fixed-window counter kept in the session, one window per
// action. Bursts straddling a window edge can reach twice the limit.
type RateLimiter struct {
	now Clock
}

func NewRateLimiter(opts ...Option) *RateLimiter {
	o := buildOptions(opts)
	return &RateLimiter{now: o.now}
}

// Allow counts one request for action and reports whether it fits the budget.
// A non-positive limit disables the check.
func (l *RateLimiter) Allow(sess *domain.Session, action string, limit int, period time.Duration) bool {
	if limit <= 0 {
		return true
	}
	if sess.RateWindows == nil {
		sess.RateWindows = make(map[string]domain.RateWindow)
	}

	now := l.now()
	w, ok := sess.RateWindows[action]
	if !ok || now.Sub(w.WindowStart) > period {
		sess.RateWindows[action] = domain.RateWindow{Count: 1, WindowStart: now}
		return true
	}
	if w.Count >= limit {
		return false
	}
	w.Count++
	sess.RateWindows[action] = w
	return true
}
