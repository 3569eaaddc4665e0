package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows a fixed number of requests per key per UTC calendar day.
type Limiter struct {
	mu     sync.Mutex
	quota  int
	now    func() time.Time
	counts map[string]window
}

type window struct {
	day   string
	count int
}

func New(quota int) *Limiter {
	return NewWithClock(quota, time.Now)
}

func NewWithClock(quota int, now func() time.Time) *Limiter {
	return &Limiter{quota: quota, now: now, counts: make(map[string]window)}
}

// Allow consumes one request for key. It reports whether the request fits
// into today's quota and how many remain afterwards.
func (l *Limiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.now().UTC().Format(time.DateOnly)
	for k, w := range l.counts {
		if w.day != today {
			delete(l.counts, k)
		}
	}

	w := l.counts[key]
	if w.count >= l.quota {
		return false, 0
	}
	w.day = today
	w.count++
	l.counts[key] = w
	return true, l.quota - w.count
}

// remaining reports the unused quota for key without consuming any.
func (l *Limiter) remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.counts[key]
	if !ok || w.day != l.now().UTC().Format(time.DateOnly) {
		return l.quota
	}
	return l.quota - w.count
}

// tracked returns the number of keys with a live window.
func (l *Limiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}
