package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Bucket struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

func (b Bucket) Enabled() bool {
	return b.RequestsPerMinute > 0 && b.BurstSize > 0
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, scope string, subject string, bucket Bucket) (Decision, error)
}

// InProcessLimiter keeps one token bucket per scope/subject pair. The state
// lives in process memory, matching the default registry: a multi-node
// deployment would swap this for a shared implementation behind the same
// interface.
type InProcessLimiter struct {
	mu      sync.Mutex
	buckets map[string]*entry
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const staleAfter = 10 * time.Minute

func NewInProcessLimiter() *InProcessLimiter {
	return &InProcessLimiter{buckets: make(map[string]*entry)}
}

func (l *InProcessLimiter) Allow(ctx context.Context, scope string, subject string, bucket Bucket) (Decision, error) {
	if !bucket.Enabled() {
		return Decision{Allowed: true}, nil
	}

	key := scope + ":" + subject
	now := time.Now()

	l.mu.Lock()
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(float64(bucket.RequestsPerMinute)/60.0), bucket.BurstSize)}
		l.buckets[key] = e
	}
	e.lastSeen = now
	l.evictStaleLocked(now)
	l.mu.Unlock()

	res := e.limiter.Reserve()
	if !res.OK() {
		return Decision{Allowed: false, RetryAfter: time.Minute}, nil
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}

func (l *InProcessLimiter) evictStaleLocked(now time.Time) {
	for key, e := range l.buckets {
		if now.Sub(e.lastSeen) > staleAfter {
			delete(l.buckets, key)
		}
	}
}
