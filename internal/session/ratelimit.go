package session

import (
	"sync"
	"time"
)

// LimiterConfig bounds submissions per session within a sliding window.
type LimiterConfig struct {
	Limit  int
	Window time.Duration
}

// windowState is one session's admission history: an ordered timestamp slice
// plus an advancing start index, so expiring old entries is an index bump
// rather than a reslice on every call.
type windowState struct {
	timestamps []time.Time
	start      int
}

// RateLimiter is a per-session sliding-window admission control. State is
// keyed purely by session identity, never by content, so it throttles
// submission rate regardless of payload.
type RateLimiter struct {
	mu       sync.Mutex
	cfg      LimiterConfig
	sessions map[string]*windowState
	now      func() time.Time
}

// NewRateLimiter creates a limiter with the given config.
func NewRateLimiter(cfg LimiterConfig) *RateLimiter {
	return &RateLimiter{
		cfg:      cfg,
		sessions: make(map[string]*windowState),
		now:      time.Now,
	}
}

// Allow reports whether the session may submit now. A rejected call records
// nothing, so hammering a full window does not extend it.
func (l *RateLimiter) Allow(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.cfg.Window)

	state, ok := l.sessions[sessionID]
	if !ok {
		state = &windowState{}
		l.sessions[sessionID] = state
	}

	for state.start < len(state.timestamps) && !state.timestamps[state.start].After(windowStart) {
		state.start++
	}

	if len(state.timestamps)-state.start >= l.cfg.Limit {
		return false
	}

	state.timestamps = append(state.timestamps, now)
	return true
}

// Sweep compacts live sessions and evicts those whose entire history has
// expired, bounding memory for idle and abandoned sessions. Run periodically.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Add(-l.cfg.Window)
	for id, state := range l.sessions {
		for state.start < len(state.timestamps) && !state.timestamps[state.start].After(windowStart) {
			state.start++
		}

		if state.start >= len(state.timestamps) {
			delete(l.sessions, id)
		} else if state.start > 0 {
			state.timestamps = append([]time.Time(nil), state.timestamps[state.start:]...)
			state.start = 0
		}
	}
}

// Forget drops all limiter state for a session.
func (l *RateLimiter) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}
