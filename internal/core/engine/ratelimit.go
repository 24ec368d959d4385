package engine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/routelens/routelens/internal/core"
)

// Default caller rate limit policy.
const (
	DefaultRateLimitWindow      = 10 * time.Second
	DefaultRateLimitMaxRequests = 40
	DefaultRateLimitMaxKeys     = 2000
)

// Policy is a fixed-window request budget per caller key.
type Policy struct {
	Window      time.Duration
	MaxRequests int
	MaxKeys     int
}

// ClampPolicy replaces non-positive values with the defaults.
func ClampPolicy(p Policy) Policy {
	if p.Window <= 0 {
		p.Window = DefaultRateLimitWindow
	}
	if p.MaxRequests <= 0 {
		p.MaxRequests = DefaultRateLimitMaxRequests
	}
	if p.MaxKeys <= 0 {
		p.MaxKeys = DefaultRateLimitMaxKeys
	}
	return p
}

type callerWindow struct {
	windowStart time.Time
	count       int
	lastSeen    time.Time
}

// CallerLimiter tracks request windows per caller key in memory. Keys unseen
// for two windows are dropped, and the least recently seen keys are evicted
// once MaxKeys is exceeded.
type CallerLimiter struct {
	mu      sync.Mutex
	windows map[string]*callerWindow
}

// NewCallerLimiter returns an empty limiter.
func NewCallerLimiter() *CallerLimiter {
	return &CallerLimiter{windows: make(map[string]*callerWindow)}
}

// Consume counts one request for key at now and reports whether it fits the
// window. Every call counts, allowed or not.
func (l *CallerLimiter) Consume(key string, policy Policy, now time.Time) core.RateLimitDecision {
	policy = ClampPolicy(policy)
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anon"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windows == nil {
		l.windows = make(map[string]*callerWindow)
	}
	l.prune(key, now, policy)

	state, ok := l.windows[key]
	if !ok || now.Sub(state.windowStart) >= policy.Window {
		state = &callerWindow{windowStart: now}
		l.windows[key] = state
	}
	state.count++
	state.lastSeen = now

	resetAt := state.windowStart.Add(policy.Window)
	decision := core.RateLimitDecision{
		Limit:    policy.MaxRequests,
		WindowMs: policy.Window.Milliseconds(),
		ResetAt:  resetAt.UTC(),
	}

	if state.count > policy.MaxRequests {
		retry := retryAfterSeconds(resetAt.Sub(now))
		decision.RetryAfterSec = &retry
		return decision
	}

	decision.Allowed = true
	decision.Remaining = max(0, policy.MaxRequests-state.count)
	return decision
}

// Len returns the number of tracked keys.
func (l *CallerLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Reset forgets every key.
func (l *CallerLimiter) Reset() {
	l.mu.Lock()
	l.windows = make(map[string]*callerWindow)
	l.mu.Unlock()
}

// prune drops stale keys and evicts the least recently seen ones so that
// admitting key keeps the map within MaxKeys.
func (l *CallerLimiter) prune(incoming string, now time.Time, policy Policy) {
	stale := 2 * policy.Window
	for key, state := range l.windows {
		if now.Sub(state.lastSeen) > stale {
			delete(l.windows, key)
		}
	}

	capacity := policy.MaxKeys
	if _, ok := l.windows[incoming]; !ok {
		capacity--
	}
	overflow := len(l.windows) - capacity
	if overflow <= 0 {
		return
	}

	keys := make([]string, 0, len(l.windows))
	for key := range l.windows {
		if key != incoming {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return l.windows[keys[i]].lastSeen.Before(l.windows[keys[j]].lastSeen)
	})
	for _, key := range keys[:overflow] {
		delete(l.windows, key)
	}
}

func retryAfterSeconds(remaining time.Duration) int {
	seconds := int((remaining + time.Second - 1) / time.Second)
	if remaining <= 0 || seconds < 1 {
		return 1
	}
	return seconds
}
