package service

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AttemptLimitConfig bounds credential-guessing across login flows.
// The per-flow attempt budget lives in AuthFlow; this limiter is the
// application-level backstop keyed by username, so abandoning a flow and
// starting a new one does not reset the clock.
type AttemptLimitConfig struct {
	Attempts int
	Window   time.Duration
	Burst    int
}

// DefaultAttemptLimit allows 5 attempts per minute per username, all
// available as a burst.
var DefaultAttemptLimit = AttemptLimitConfig{
	Attempts: 5,
	Window:   time.Minute,
	Burst:    5,
}

type attemptLimiter struct {
	cfg AttemptLimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newAttemptLimiter(cfg AttemptLimitConfig) *attemptLimiter {
	if cfg.Attempts <= 0 {
		cfg = DefaultAttemptLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.Attempts
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &attemptLimiter{
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether another attempt for key may proceed now.
func (l *attemptLimiter) Allow(key string) bool {
	key = strings.ToLower(key)

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		every := l.cfg.Window / time.Duration(l.cfg.Attempts)
		lim = rate.NewLimiter(rate.Every(every), l.cfg.Burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
