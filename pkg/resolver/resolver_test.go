package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveCachesFulfilled(t *testing.T) {
	r := New[string]()
	var calls atomic.Int32

	key := Key{Scope: 1, Path: "/posts/hello"}
	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "content:" + key.Path, nil
	}

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(context.Background(), key, load)
		if err != nil {
			t.Fatalf("Resolve #%d unexpected error = %v", i, err)
		}
		if got != "content:/posts/hello" {
			t.Fatalf("Resolve #%d = %q, want %q", i, got, "content:/posts/hello")
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}

	e, ok := r.Peek(key)
	if !ok {
		t.Fatal("Peek: entry missing after Resolve")
	}
	if e.Status != StatusFulfilled {
		t.Errorf("Peek status = %v, want %v", e.Status, StatusFulfilled)
	}
}

func TestResolveCachesRejected(t *testing.T) {
	r := New[string]()
	loadErr := errors.New("boom")
	var calls atomic.Int32
	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", loadErr
	}

	key := Key{Scope: 1, Path: "/broken"}
	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), key, load)
		if !errors.Is(err, loadErr) {
			t.Fatalf("Resolve #%d error = %v, want %v", i, err, loadErr)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1 (rejection should be cached)", n)
	}

	e, ok := r.Peek(key)
	if !ok || e.Status != StatusRejected {
		t.Errorf("Peek = (%+v, %v), want rejected entry", e, ok)
	}

	// Invalidation clears the rejection and allows a retry.
	r.Forget(key)
	if _, err := r.Resolve(context.Background(), key, load); !errors.Is(err, loadErr) {
		t.Fatalf("Resolve after Forget error = %v, want %v", err, loadErr)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("loader calls after Forget = %d, want 2", n)
	}
}

func TestResolveVariantsAreDistinct(t *testing.T) {
	r := New[string]()
	var calls atomic.Int32

	base := Key{Scope: 1, Path: "/posts"}
	head := base
	head.Variant = "head"

	loadFor := func(k Key) LoadFunc[string] {
		return func(ctx context.Context) (string, error) {
			calls.Add(1)
			return k.Variant, nil
		}
	}

	if got, _ := r.Resolve(context.Background(), base, loadFor(base)); got != "" {
		t.Errorf("Resolve(base) = %q, want %q", got, "")
	}
	if got, _ := r.Resolve(context.Background(), head, loadFor(head)); got != "head" {
		t.Errorf("Resolve(head) = %q, want %q", got, "head")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("loader calls = %d, want 2", n)
	}
}

func TestResolveCoalesces(t *testing.T) {
	const waiters = 8

	r := New[string]()
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	var startOnce sync.Once

	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		startOnce.Do(func() { close(started) })
		<-release
		return "shared", nil
	}

	key := Key{Scope: 1, Path: "/slow"}

	var wg sync.WaitGroup
	results := make([]string, waiters+1)
	errs := make([]error, waiters+1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = r.Resolve(context.Background(), key, load)
	}()
	<-started

	for i := 1; i <= waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), key, load)
		}(i)
	}

	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("loader calls = %d, want 1", n)
	}
	for i := range results {
		if errs[i] != nil {
			t.Errorf("Resolve #%d unexpected error = %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("Resolve #%d = %q, want %q", i, results[i], "shared")
		}
	}

	stats := r.Stats()
	if stats.Hits+stats.Coalesced != waiters {
		t.Errorf("hits+coalesced = %d, want %d", stats.Hits+stats.Coalesced, waiters)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestWaiterCancellationLeavesLoadRunning(t *testing.T) {
	r := New[string]()
	release := make(chan struct{})
	started := make(chan struct{})

	load := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "late", nil
	}

	key := Key{Scope: 1, Path: "/slow"}

	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		if _, err := r.Resolve(context.Background(), key, load); err != nil {
			t.Errorf("leader Resolve unexpected error = %v", err)
		}
	}()
	<-started

	// A waiter that gives up must get its own context error, not block and
	// not disturb the in-flight load.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, key, load); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled waiter error = %v, want context.Canceled", err)
	}

	close(release)
	<-leaderDone

	got, err := r.Resolve(context.Background(), key, load)
	if err != nil || got != "late" {
		t.Errorf("Resolve after settle = (%q, %v), want (%q, nil)", got, err, "late")
	}
}

func TestLeaderCancellationIsNotCached(t *testing.T) {
	r := New[string]()
	var calls atomic.Int32
	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "ok", nil
	}

	key := Key{Scope: 1, Path: "/flaky"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, key, load); !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve error = %v, want context.Canceled", err)
	}
	if _, ok := r.Peek(key); ok {
		t.Fatal("cancelled load settled into the cache")
	}

	got, err := r.Resolve(context.Background(), key, load)
	if err != nil || got != "ok" {
		t.Fatalf("Resolve retry = (%q, %v), want (%q, nil)", got, err, "ok")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("loader calls = %d, want 2", n)
	}
}

func TestPurgeScope(t *testing.T) {
	r := New[string]()

	for scope := uint64(1); scope <= 2; scope++ {
		for _, path := range []string{"/a", "/b"} {
			p := path
			_, err := r.Resolve(context.Background(), Key{Scope: scope, Path: p}, func(ctx context.Context) (string, error) {
				return p, nil
			})
			if err != nil {
				t.Fatalf("Resolve unexpected error = %v", err)
			}
		}
	}
	if n := r.Len(); n != 4 {
		t.Fatalf("Len = %d, want 4", n)
	}

	if n := r.PurgeScope(1); n != 2 {
		t.Errorf("PurgeScope(1) = %d, want 2", n)
	}
	if _, ok := r.Peek(Key{Scope: 1, Path: "/a"}); ok {
		t.Error("scope 1 entry survived purge")
	}
	if _, ok := r.Peek(Key{Scope: 2, Path: "/a"}); !ok {
		t.Error("scope 2 entry removed by purge of scope 1")
	}

	r.Clear()
	if n := r.Len(); n != 0 {
		t.Errorf("Len after Clear = %d, want 0", n)
	}
}

func TestLRUEviction(t *testing.T) {
	var evicted []Key
	var mu sync.Mutex

	r := New[string](
		WithMaxEntries(2),
		WithHooks(Hooks{Evict: func(k Key) {
			mu.Lock()
			evicted = append(evicted, k)
			mu.Unlock()
		}}),
	)

	for _, path := range []string{"/one", "/two", "/three"} {
		p := path
		_, err := r.Resolve(context.Background(), Key{Scope: 1, Path: p}, func(ctx context.Context) (string, error) {
			return p, nil
		})
		if err != nil {
			t.Fatalf("Resolve(%q) unexpected error = %v", p, err)
		}
	}

	if _, ok := r.Peek(Key{Scope: 1, Path: "/one"}); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := r.Peek(Key{Scope: 1, Path: "/three"}); !ok {
		t.Error("most recent entry was evicted")
	}
	if n := r.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 1 || evicted[0].Path != "/one" {
		t.Errorf("evicted = %v, want [/one]", evicted)
	}
}

func TestTTLExpiry(t *testing.T) {
	r := New[string](WithTTL(15 * time.Millisecond))
	var calls atomic.Int32
	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		return fmt.Sprintf("v%d", calls.Load()), nil
	}

	key := Key{Scope: 1, Path: "/fresh"}
	if got, _ := r.Resolve(context.Background(), key, load); got != "v1" {
		t.Fatalf("Resolve = %q, want v1", got)
	}
	if got, _ := r.Resolve(context.Background(), key, load); got != "v1" {
		t.Fatalf("Resolve within TTL = %q, want v1", got)
	}

	time.Sleep(30 * time.Millisecond)

	if got, _ := r.Resolve(context.Background(), key, load); got != "v2" {
		t.Fatalf("Resolve after TTL = %q, want v2", got)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("loader calls = %d, want 2", n)
	}
}

func TestLoaderPanicBecomesRejection(t *testing.T) {
	r := New[string](WithLogger(discardLogger()))
	var calls atomic.Int32
	load := func(ctx context.Context) (string, error) {
		calls.Add(1)
		panic("kaboom")
	}

	key := Key{Scope: 1, Path: "/explosive"}
	_, err := r.Resolve(context.Background(), key, load)
	if !errors.Is(err, ErrLoaderPanic) {
		t.Fatalf("Resolve error = %v, want ErrLoaderPanic", err)
	}

	// The panic settles as a cached rejection.
	if _, err = r.Resolve(context.Background(), key, load); !errors.Is(err, ErrLoaderPanic) {
		t.Fatalf("Resolve #2 error = %v, want ErrLoaderPanic", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader calls = %d, want 1", n)
	}
}

func TestHooksAndStats(t *testing.T) {
	var hits, misses atomic.Int32
	r := New[string](
		WithHooks(Hooks{
			Hit:  func(Key) { hits.Add(1) },
			Miss: func(Key) { misses.Add(1) },
		}),
	)
	load := func(ctx context.Context) (string, error) { return "x", nil }

	key := Key{Scope: 1, Path: "/x"}
	r.Resolve(context.Background(), key, load)
	r.Resolve(context.Background(), key, load)

	if n := misses.Load(); n != 1 {
		t.Errorf("miss hook fired %d times, want 1", n)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("hit hook fired %d times, want 1", n)
	}

	stats := r.Stats()
	if stats.Size != 1 || stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats = %+v, want size/hits/misses = 1/1/1", stats)
	}

	keys := r.Keys()
	if len(keys) != 1 || keys[0] != key {
		t.Errorf("Keys = %v, want [%v]", keys, key)
	}
	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Status != StatusFulfilled {
		t.Errorf("Snapshot = %+v, want one fulfilled entry", snap)
	}
}
