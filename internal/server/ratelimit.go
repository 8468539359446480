package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter enforces per-client request rates and daily quotas. Minute
// and hour limits use fixed windows that start with the first request of
// the window; daily quotas reset at local midnight.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int
	maxDataPerDay     int64 // bytes

	clients map[string]*clientUsage
	now     func() time.Time
}

type window struct {
	start time.Time
	count int
}

// roll restarts w when it is older than span.
func (w *window) roll(now time.Time, span time.Duration) {
	if w.start.IsZero() || now.Sub(w.start) >= span {
		w.start = now
		w.count = 0
	}
}

type clientUsage struct {
	minute window
	hour   window

	day       time.Time // local midnight of the current quota day
	requests  int
	dataBytes int64
	lastSeen  time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	RequestsToday      int
	DataToday          int64
	LastSeen           time.Time
}

// NewRateLimiter creates a rate limiter. Zero disables a limit.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit admits a request of dataSize bytes from clientID or
// returns a *RateLimitError or *QuotaExceededError. Rejected requests are
// not counted.
func (rl *RateLimiter) CheckRateLimit(clientID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u := rl.clients[clientID]
	if u == nil {
		u = &clientUsage{}
		rl.clients[clientID] = u
	}

	u.minute.roll(now, time.Minute)
	u.hour.roll(now, time.Hour)
	if today := midnight(now); !today.Equal(u.day) {
		u.day, u.requests, u.dataBytes = today, 0, 0
	}

	if rl.requestsPerMinute > 0 && u.minute.count >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.minute.start.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.hour.count >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: u.hour.start.Add(time.Hour).Sub(now)}
	}

	resets := u.day.AddDate(0, 0, 1)
	if rl.maxRequestsPerDay > 0 && u.requests >= rl.maxRequestsPerDay {
		return &QuotaExceededError{Type: "requests", Limit: int64(rl.maxRequestsPerDay), Used: int64(u.requests), Resets: resets}
	}
	if rl.maxDataPerDay > 0 && u.dataBytes+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{Type: "data", Limit: rl.maxDataPerDay, Used: u.dataBytes, Resets: resets}
	}

	u.minute.count++
	u.hour.count++
	u.requests++
	u.dataBytes += dataSize
	u.lastSeen = now
	return nil
}

// GetUsage returns a snapshot of the counters of clientID.
func (rl *RateLimiter) GetUsage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[clientID]
	if !ok {
		return Usage{}
	}
	return Usage{
		RequestsThisMinute: u.minute.count,
		RequestsThisHour:   u.hour.count,
		RequestsToday:      u.requests,
		DataToday:          u.dataBytes,
		LastSeen:           u.lastSeen,
	}
}

// Prune forgets clients idle for longer than maxIdle and returns how many
// were removed.
func (rl *RateLimiter) Prune(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, u := range rl.clients {
		if now.Sub(u.lastSeen) > maxIdle {
			delete(rl.clients, id)
			removed++
		}
	}
	return removed
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
