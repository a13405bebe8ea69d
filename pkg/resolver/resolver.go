// Package resolver provides a keyed, coalescing async cache.
//
// A Resolver memoizes the results of an asynchronous loader function per
// key. Concurrent Resolve calls for the same key share one loader
// invocation: the first caller runs the load, later callers wait on the
// same in-flight entry. Settled entries, fulfilled and rejected alike,
// persist until invalidated (Forget, PurgeScope, Clear), evicted by the
// optional LRU cap, or expired by the optional TTL.
package resolver

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Keys and Entries
// =============================================================================

// Key identifies one cached resolution.
//
// Scope partitions the cache between router generations: rotating the scope
// and purging the old one invalidates everything a retired router produced
// without touching in-flight loads. Variant distinguishes alternate
// resolutions of the same path, such as the request method or a sitemap's
// with-content pass.
type Key struct {
	Scope   uint64
	Path    string
	Variant string
}

func (k Key) String() string {
	if k.Variant == "" {
		return fmt.Sprintf("%d:%s", k.Scope, k.Path)
	}
	return fmt.Sprintf("%d:%s#%s", k.Scope, k.Path, k.Variant)
}

// Status is the lifecycle state of a cache entry.
type Status int

const (
	// StatusPending marks an entry whose load is still in flight.
	StatusPending Status = iota

	// StatusFulfilled marks an entry whose load returned a value.
	StatusFulfilled

	// StatusRejected marks an entry whose load returned an error.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Entry is a point-in-time snapshot of a cache entry, as returned by Peek
// and Snapshot.
type Entry[V any] struct {
	Key       Key
	Status    Status
	Value     V
	Err       error
	CreatedAt time.Time
	ExpiresAt time.Time // zero when the resolver has no TTL
}

// ErrLoaderPanic wraps a panic recovered from a loader. The panicking load
// settles its entry as rejected so that waiters observe an error instead of
// hanging.
var ErrLoaderPanic = errors.New("panic in loader")

// LoadFunc produces the value for a key. It runs in the goroutine of the
// first caller for that key; the context is that caller's context. A
// LoadFunc must not resolve its own key, directly or indirectly.
type LoadFunc[V any] func(ctx context.Context) (V, error)

// =============================================================================
// Configuration
// =============================================================================

// Hooks receives cache lifecycle notifications. All fields are optional.
// Hooks are invoked outside the resolver's lock and must not call back into
// the resolver synchronously with blocking intent.
type Hooks struct {
	// Hit fires when Resolve finds a settled entry.
	Hit func(Key)

	// Miss fires when Resolve starts a new load.
	Miss func(Key)

	// Coalesced fires when Resolve joins an in-flight load.
	Coalesced func(Key)

	// Load fires when a load settles, with its duration and error (nil on
	// fulfillment).
	Load func(key Key, d time.Duration, err error)

	// Evict fires when an entry is removed to satisfy the LRU cap.
	Evict func(Key)
}

type config struct {
	maxEntries int
	ttl        time.Duration
	hooks      Hooks
	logger     *slog.Logger
}

// Option configures a Resolver.
type Option func(*config)

// WithMaxEntries caps the number of cached entries. When the cap is
// exceeded the least recently used settled entry is evicted; in-flight
// entries are never evicted. Zero (the default) means unlimited.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithTTL expires settled entries d after they settle. Zero (the default)
// means entries persist until invalidated.
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// WithHooks installs cache lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(c *config) { c.hooks = h }
}

// WithLogger sets the logger used for loader panics. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// =============================================================================
// Resolver
// =============================================================================

// Stats are cumulative cache counters.
type Stats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Coalesced uint64
	Evictions uint64
	Failures  uint64
}

// Resolver is a keyed, coalescing async cache. The zero value is not
// usable; create one with New.
type Resolver[V any] struct {
	cfg config

	mu      sync.Mutex
	entries map[Key]*list.Element
	order   *list.List // LRU order (front = most recent)

	hits      atomic.Uint64
	misses    atomic.Uint64
	coalesced atomic.Uint64
	evictions atomic.Uint64
	failures  atomic.Uint64
}

// item is the LRU list payload.
type item[V any] struct {
	key   Key
	entry *entry[V]
}

// entry is the shared in-flight/settled record. The leader writes the
// settled fields under the resolver lock, then closes done; waiters read
// them only after done is closed.
type entry[V any] struct {
	done      chan struct{}
	status    Status
	value     V
	err       error
	createdAt time.Time
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// New creates an empty Resolver.
func New[V any](opts ...Option) *Resolver[V] {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Resolver[V]{
		cfg:     cfg,
		entries: make(map[Key]*list.Element),
		order:   list.New(),
	}
}

// Resolve returns the cached value for key, starting load on a miss and
// joining the in-flight load on a concurrent miss. Concurrent callers for
// the same key share one load invocation: the first caller's load runs,
// later callers' load arguments are ignored.
//
// ctx cancels only this caller's wait. A load started by another caller
// keeps running and settles the cache regardless; a load started by this
// caller runs under ctx, and if it fails with ctx's cancellation the
// rejection is returned but not cached.
func (r *Resolver[V]) Resolve(ctx context.Context, key Key, load LoadFunc[V]) (V, error) {
	r.mu.Lock()

	if elem, ok := r.entries[key]; ok {
		it := elem.Value.(*item[V])
		e := it.entry

		if e.status == StatusPending {
			r.mu.Unlock()
			r.coalesced.Add(1)
			r.callHook(r.cfg.hooks.Coalesced, key)
			return r.wait(ctx, e)
		}

		if !e.expired(time.Now()) {
			r.order.MoveToFront(elem)
			value, err := e.value, e.err
			r.mu.Unlock()
			r.hits.Add(1)
			r.callHook(r.cfg.hooks.Hit, key)
			return value, err
		}

		// Expired: drop and fall through to a fresh load.
		r.removeLocked(key, elem)
	}

	e := &entry[V]{
		done:      make(chan struct{}),
		status:    StatusPending,
		createdAt: time.Now(),
	}
	evicted := r.insertLocked(key, e)
	r.mu.Unlock()

	for _, k := range evicted {
		r.callHook(r.cfg.hooks.Evict, k)
	}
	r.misses.Add(1)
	r.callHook(r.cfg.hooks.Miss, key)
	return r.run(ctx, key, e, load)
}

// Peek returns a snapshot of the entry for key without starting a load or
// refreshing its LRU position.
func (r *Resolver[V]) Peek(key Key) (Entry[V], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	e := elem.Value.(*item[V]).entry
	if e.status != StatusPending && e.expired(time.Now()) {
		r.removeLocked(key, elem)
		return Entry[V]{}, false
	}
	return Entry[V]{
		Key:       key,
		Status:    e.status,
		Value:     e.value,
		Err:       e.err,
		CreatedAt: e.createdAt,
		ExpiresAt: e.expiresAt,
	}, true
}

// Forget removes the entry for key, if any. An in-flight load keeps
// running and still delivers to its waiters, but no longer settles into
// the cache.
func (r *Resolver[V]) Forget(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elem, ok := r.entries[key]; ok {
		r.removeLocked(key, elem)
	}
}

// PurgeScope removes every entry whose key belongs to scope and reports
// how many were removed.
func (r *Resolver[V]) PurgeScope(scope uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, elem := range r.entries {
		if key.Scope == scope {
			r.removeLocked(key, elem)
			n++
		}
	}
	return n
}

// Clear removes all entries.
func (r *Resolver[V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Key]*list.Element)
	r.order = list.New()
}

// Len returns the number of cached entries, including in-flight ones.
func (r *Resolver[V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Keys returns the cached keys in unspecified order.
func (r *Resolver[V]) Keys() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]Key, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	return keys
}

// Snapshot returns point-in-time snapshots of every entry, in unspecified
// order. Intended for inspection and diagnostics.
func (r *Resolver[V]) Snapshot() []Entry[V] {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry[V], 0, len(r.entries))
	for key, elem := range r.entries {
		e := elem.Value.(*item[V]).entry
		out = append(out, Entry[V]{
			Key:       key,
			Status:    e.status,
			Value:     e.value,
			Err:       e.err,
			CreatedAt: e.createdAt,
			ExpiresAt: e.expiresAt,
		})
	}
	return out
}

// Stats returns cumulative counters and the current size.
func (r *Resolver[V]) Stats() Stats {
	r.mu.Lock()
	size := len(r.entries)
	r.mu.Unlock()
	return Stats{
		Size:      size,
		Hits:      r.hits.Load(),
		Misses:    r.misses.Load(),
		Coalesced: r.coalesced.Load(),
		Evictions: r.evictions.Load(),
		Failures:  r.failures.Load(),
	}
}

// =============================================================================
// Internals
// =============================================================================

// run executes the load for a freshly inserted pending entry in the
// caller's goroutine, settles the entry, and wakes waiters.
func (r *Resolver[V]) run(ctx context.Context, key Key, e *entry[V], load LoadFunc[V]) (V, error) {
	start := time.Now()
	value, err := r.safeLoad(ctx, key, load)

	r.mu.Lock()
	e.value = value
	e.err = err
	e.expiresAt = expiry(start, r.cfg.ttl)
	if err != nil {
		e.status = StatusRejected
	} else {
		e.status = StatusFulfilled
	}

	// A rejection caused by the leader's own context is transient: waiters
	// still observe it, but caching it would poison later callers.
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if elem, ok := r.entries[key]; ok && elem.Value.(*item[V]).entry == e {
			r.removeLocked(key, elem)
		}
	}
	r.mu.Unlock()
	close(e.done)

	if err != nil {
		r.failures.Add(1)
	}
	if r.cfg.hooks.Load != nil {
		r.cfg.hooks.Load(key, time.Since(start), err)
	}
	return value, err
}

// wait blocks until the in-flight entry settles or ctx is done, whichever
// comes first. Abandoning the wait does not affect the load.
func (r *Resolver[V]) wait(ctx context.Context, e *entry[V]) (V, error) {
	select {
	case <-e.done:
		return e.value, e.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// safeLoad runs the loader, converting a panic into a rejection.
func (r *Resolver[V]) safeLoad(ctx context.Context, key Key, load LoadFunc[V]) (value V, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrLoaderPanic, rec)
			r.cfg.logger.Error("resolver: loader panicked",
				"key", key.String(),
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()
	if load == nil {
		var zero V
		return zero, errors.New("resolver: nil load")
	}
	return load(ctx)
}

// insertLocked adds a new entry and evicts past the cap, returning the
// evicted keys so the caller can fire hooks after unlocking. Pending
// entries are never evicted, so the cache may transiently exceed the cap
// while loads are in flight.
func (r *Resolver[V]) insertLocked(key Key, e *entry[V]) []Key {
	elem := r.order.PushFront(&item[V]{key: key, entry: e})
	r.entries[key] = elem

	if r.cfg.maxEntries <= 0 {
		return nil
	}
	var evicted []Key
	for oldest := r.order.Back(); oldest != nil && len(r.entries) > r.cfg.maxEntries; {
		it := oldest.Value.(*item[V])
		prev := oldest.Prev()
		if it.entry.status != StatusPending {
			r.removeLocked(it.key, oldest)
			r.evictions.Add(1)
			evicted = append(evicted, it.key)
		}
		oldest = prev
	}
	return evicted
}

func (r *Resolver[V]) removeLocked(key Key, elem *list.Element) {
	r.order.Remove(elem)
	delete(r.entries, key)
}

func (r *Resolver[V]) callHook(h func(Key), key Key) {
	if h != nil {
		h(key)
	}
}

func expiry(start time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return start.Add(ttl)
}
