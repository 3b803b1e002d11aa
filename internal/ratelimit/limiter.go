package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const window = time.Minute

// ipState tracks recent admissions and the active block for one source IP
type ipState struct {
	mu           sync.Mutex
	times        []time.Time
	blockedUntil time.Time
}

// Limiter is a per-source-IP sliding-window rate limiter with timed blocking.
// State is process-local and rebuilds from empty on restart.
type Limiter struct {
	mu            sync.Mutex
	ips           map[string]*ipState
	limit         int
	blockDuration time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewLimiter creates a limiter admitting up to limit sessions per source IP
// per trailing 60 seconds; an IP over the limit is blocked for blockDuration.
func NewLimiter(limit int, blockDuration time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		ips:           make(map[string]*ipState),
		limit:         limit,
		blockDuration: blockDuration,
		logger:        logger,
		now:           time.Now,
	}
}

func (l *Limiter) state(ip string) *ipState {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.ips[ip]
	if !ok {
		st = &ipState{}
		l.ips[ip] = st
	}
	return st
}

// Admit reports whether a session from the given source IP may proceed.
// The read-modify-write is atomic per IP; unrelated IPs never contend.
func (l *Limiter) Admit(sourceIP string) bool {
	st := l.state(sourceIP)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	if now.Before(st.blockedUntil) {
		return false
	}

	// Prune admissions outside the trailing window
	cutoff := now.Add(-window)
	kept := st.times[:0]
	for _, t := range st.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.times = kept

	if len(st.times) >= l.limit {
		st.blockedUntil = now.Add(l.blockDuration)
		st.times = nil
		if l.logger != nil {
			l.logger.Warn("Source IP rate limited",
				zap.String("source_ip", sourceIP),
				zap.Time("blocked_until", st.blockedUntil))
		}
		return false
	}

	st.times = append(st.times, now)
	return true
}
