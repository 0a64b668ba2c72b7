package auth

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// LoginLimiter counts failed logins per email within a fixed window that
// starts at the first failure. It stores counters only.
//
// A nil *LoginLimiter is valid and never blocks.
type LoginLimiter struct {
	failures *cache.Cache
	max      int
	window   time.Duration
}

// NewLoginLimiter returns nil when maxFailures is zero, disabling lockout.
func NewLoginLimiter(maxFailures int, window time.Duration) *LoginLimiter {
	if maxFailures <= 0 || window <= 0 {
		return nil
	}
	return &LoginLimiter{
		failures: cache.New(window, window),
		max:      maxFailures,
		window:   window,
	}
}

// Blocked reports whether key has used up its failures for the window.
func (l *LoginLimiter) Blocked(key string) bool {
	if l == nil {
		return false
	}
	v, ok := l.failures.Get(key)
	if !ok {
		return false
	}
	n, _ := v.(int)
	return n >= l.max
}

func (l *LoginLimiter) RecordFailure(key string) {
	if l == nil {
		return
	}
	if err := l.failures.Add(key, 1, l.window); err != nil {
		// already counting; Increment keeps the original expiry
		if err := l.failures.Increment(key, 1); err != nil {
			l.failures.Set(key, 1, l.window)
		}
	}
}

func (l *LoginLimiter) Reset(key string) {
	if l == nil {
		return
	}
	l.failures.Delete(key)
}
