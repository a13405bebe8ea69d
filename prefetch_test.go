package wayfind

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wayfind-go/wayfind/pkg/router"
	"github.com/wayfind-go/wayfind/pkg/urls"
)

func TestPrefetchPrimesCache(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	if err := nav.Prefetch(context.Background(), "/posts/hello"); err != nil {
		t.Fatalf("Prefetch error: %v", err)
	}
	if got := site.loads["/posts/hello"].Load(); got != 1 {
		t.Fatalf("loads after prefetch = %d, want 1", got)
	}

	state, err := nav.Navigate(context.Background(), "/posts/hello")
	if err != nil {
		t.Fatalf("Navigate error: %v", err)
	}
	last, _ := state.LastRoute()
	if last.Content != "hello" {
		t.Fatalf("content = %v, want %q", last.Content, "hello")
	}
	if got := site.loads["/posts/hello"].Load(); got != 1 {
		t.Fatalf("loads after navigate = %d, want 1 (cache primed)", got)
	}
}

func TestPrefetchLeavesHistoryAndStateAlone(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)
	before := nav.Stats().Emissions

	if err := nav.Prefetch(context.Background(), "/fast"); err != nil {
		t.Fatalf("Prefetch error: %v", err)
	}

	if got := nav.History().Location().Pathname; got != "/" {
		t.Fatalf("history location = %q, want / (prefetch must not navigate)", got)
	}
	if got := nav.Current().URL.Pathname; got != "/" {
		t.Fatalf("current state = %q, want /", got)
	}
	if got := nav.Stats().Emissions; got != before {
		t.Fatalf("emissions = %d, want %d (prefetch must not emit)", got, before)
	}
}

func TestPrefetchRateLimit(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{
		Routes:              site.tree(),
		PrefetchRate:        1,
		PrefetchConcurrency: -1,
	})
	steady(t, nav)

	if err := nav.Prefetch(context.Background(), "/fast"); err != nil {
		t.Fatalf("first Prefetch error: %v", err)
	}
	if err := nav.Prefetch(context.Background(), "/posts/hello"); !errors.Is(err, ErrPrefetchLimited) {
		t.Fatalf("second Prefetch error = %v, want ErrPrefetchLimited", err)
	}
	if got := nav.Stats().PrefetchDropped; got != 1 {
		t.Fatalf("PrefetchDropped = %d, want 1", got)
	}

	// Dropped prefetches never reach the loaders.
	if got := site.loads["/posts/hello"].Load(); got != 0 {
		t.Fatalf("loads = %d, want 0", got)
	}
}

func TestPrefetchRateLimitRefills(t *testing.T) {
	lim := newRateLimiter(100)
	for i := 0; i < 100; i++ {
		if !lim.allow() {
			t.Fatalf("allow() = false on token %d within the budget", i)
		}
	}
	if lim.allow() {
		t.Fatal("allow() = true with an empty bucket")
	}
	time.Sleep(30 * time.Millisecond) // ~3 tokens at 100/s
	if !lim.allow() {
		t.Fatal("allow() = false after refill interval")
	}
}

func TestPrefetchUnlimitedRate(t *testing.T) {
	lim := newRateLimiter(-1)
	for i := 0; i < 1000; i++ {
		if !lim.allow() {
			t.Fatal("negative rate must disable limiting")
		}
	}
}

func TestPrefetchConcurrencyCap(t *testing.T) {
	site := newTestSite()
	slowGate := site.gate("/slow")
	nav := newTestNav(t, Config{
		Routes:              site.tree(),
		PrefetchRate:        -1,
		PrefetchConcurrency: 1,
	})
	steady(t, nav)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- nav.Prefetch(context.Background(), "/slow")
	}()
	deadline := time.Now().Add(2 * time.Second)
	for site.loads["/slow"].Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow prefetch never started")
		}
		time.Sleep(1 * time.Millisecond)
	}

	if err := nav.Prefetch(context.Background(), "/fast"); !errors.Is(err, ErrPrefetchLimited) {
		t.Fatalf("concurrent Prefetch error = %v, want ErrPrefetchLimited", err)
	}

	close(slowGate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Prefetch error: %v", err)
	}

	// Slot released: the next prefetch goes through.
	if err := nav.Prefetch(context.Background(), "/fast"); err != nil {
		t.Fatalf("Prefetch after release error: %v", err)
	}
}

func TestPrefetchReportsLoaderErrorWithoutCaching(t *testing.T) {
	wantErr := errors.New("api down")
	var loads int
	tree := router.Switch(router.SwitchConfig{Mappings: []router.Mapping{
		{Path: "/", Node: router.Page(router.PageConfig{Content: "home"})},
		{Path: "/broken", Node: router.Page(router.PageConfig{
			GetContent: func(ctx context.Context, env router.Env) (any, error) {
				loads++
				return nil, wantErr
			},
		})},
	}})
	nav := newTestNav(t, Config{Routes: tree, PrefetchRate: -1, PrefetchConcurrency: -1})
	steady(t, nav)

	if err := nav.Prefetch(context.Background(), "/broken"); !errors.Is(err, wantErr) {
		t.Fatalf("Prefetch error = %v, want wrapped %v", err, wantErr)
	}
	if err := nav.Prefetch(context.Background(), "/broken"); !errors.Is(err, wantErr) {
		t.Fatalf("second Prefetch error = %v, want wrapped %v", err, wantErr)
	}
	if loads != 2 {
		t.Fatalf("loads = %d, want 2 (failures are not cached)", loads)
	}
}

func TestPrefetchInvalidHref(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	if err := nav.Prefetch(context.Background(), "https://example.com/x"); !errors.Is(err, urls.ErrInvalidURL) {
		t.Fatalf("Prefetch error = %v, want ErrInvalidURL", err)
	}
}
