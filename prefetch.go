package wayfind

import (
	"context"
	"sync"
	"time"

	"github.com/wayfind-go/wayfind/pkg/urls"
)

// Prefetch defaults, applied when the Config fields are zero.
const (
	defaultPrefetchRate        = 5.0
	defaultPrefetchConcurrency = 2
)

// Prefetch resolves href with full content but without touching history,
// the current state, or subscribers: it only primes the resolver cache so
// a subsequent Navigate lands on settled entries. Typically called on
// link hover or viewport entry.
//
// Prefetches beyond the rate limit or the concurrency cap are dropped
// with ErrPrefetchLimited; callers usually ignore it. A failed loader is
// reported but not cached, so navigation retries it.
func (n *Navigation) Prefetch(ctx context.Context, href string) error {
	if n.isClosed() {
		return ErrClosed
	}
	d, err := urls.Resolve(n.history.Location(), href)
	if err != nil {
		return err
	}

	if !n.prefetchLim.allow() {
		n.dropped.Add(1)
		return ErrPrefetchLimited
	}
	if !n.prefetchSem.tryAcquire() {
		n.dropped.Add(1)
		return ErrPrefetchLimited
	}
	defer n.prefetchSem.release()

	n.prefetches.Add(1)
	state, err := n.Router().ResolveURL(ctx, d)
	if err != nil {
		return err
	}
	if state.Err != nil {
		return state.Err
	}
	n.logger.Debug("prefetched", "url", d.Href, "routes", len(state.Routes))
	return nil
}

// rateLimiter is a token bucket: the bucket holds up to ratePerSecond
// tokens and refills continuously. A non-positive rate disables limiting.
type rateLimiter struct {
	mu            sync.Mutex
	ratePerSecond float64
	tokens        float64
	lastRefill    time.Time
}

func newRateLimiter(ratePerSecond float64) *rateLimiter {
	return &rateLimiter{
		ratePerSecond: ratePerSecond,
		tokens:        ratePerSecond,
		lastRefill:    time.Now(),
	}
}

// allow consumes a token if one is available.
func (r *rateLimiter) allow() bool {
	if r.ratePerSecond <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.ratePerSecond
	if r.tokens > r.ratePerSecond {
		r.tokens = r.ratePerSecond
	}
	r.lastRefill = now

	if r.tokens >= 1.0 {
		r.tokens -= 1.0
		return true
	}
	return false
}

// semaphore caps concurrent prefetch evaluations, non-blocking. A
// non-positive limit disables the cap.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore(limit int) *semaphore {
	if limit <= 0 {
		return &semaphore{}
	}
	return &semaphore{ch: make(chan struct{}, limit)}
}

// tryAcquire takes a slot, reporting false immediately when full.
func (s *semaphore) tryAcquire() bool {
	if s.ch == nil {
		return true
	}
	select {
	case s.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *semaphore) release() {
	if s.ch == nil {
		return
	}
	select {
	case <-s.ch:
	default:
	}
}
