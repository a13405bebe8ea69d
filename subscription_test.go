package wayfind

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubscribeReplaysCurrentState(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	sub := nav.Subscribe()
	defer sub.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !state.Steady || state.URL.Pathname != "/" {
		t.Fatalf("replayed state = (steady=%v, %q), want current steady /", state.Steady, state.URL.Pathname)
	}
}

func TestSubscribeSeesBusyThenSteady(t *testing.T) {
	site := newTestSite()
	slowGate := site.gate("/slow")
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	sub := nav.Subscribe()
	defer sub.Cancel()
	if _, err := sub.Next(context.Background()); err != nil { // replay
		t.Fatalf("Next error: %v", err)
	}

	navDone := make(chan struct{})
	go func() {
		defer close(navDone)
		if _, err := nav.Navigate(context.Background(), "/slow"); err != nil {
			t.Errorf("Navigate error: %v", err)
		}
	}()

	// The first state the blocked receiver gets is the navigation's
	// opening busy placeholder.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	first, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !first.Busy() || first.URL.Pathname != "/slow" {
		t.Fatalf("first state = (busy=%v, %q), want busy /slow", first.Busy(), first.URL.Pathname)
	}

	close(slowGate)
	state := first
	for state.Busy() {
		state, err = sub.Next(ctx)
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
	}
	if state.URL.Pathname != "/slow" {
		t.Fatalf("steady state URL = %q, want /slow", state.URL.Pathname)
	}
	<-navDone
}

func TestSubscriptionConflatesToLatest(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	sub := nav.Subscribe()
	defer sub.Cancel()

	// Without consuming, run two full navigations. The buffer keeps only
	// the newest state.
	if _, err := nav.Navigate(context.Background(), "/fast"); err != nil {
		t.Fatalf("Navigate error: %v", err)
	}
	if _, err := nav.Navigate(context.Background(), "/posts/hello"); err != nil {
		t.Fatalf("Navigate error: %v", err)
	}

	state, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if !state.Steady || state.URL.Pathname != "/posts/hello" {
		t.Fatalf("conflated state = (steady=%v, %q), want steady /posts/hello", state.Steady, state.URL.Pathname)
	}

	// Nothing older is queued behind it.
	select {
	case extra := <-sub.States():
		t.Fatalf("unexpected queued state %q", extra.URL.Pathname)
	default:
	}
}

func TestSubscriptionNextHonorsContext(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	sub := nav.Subscribe()
	defer sub.Cancel()
	if _, err := sub.Next(context.Background()); err != nil { // drain replay
		t.Fatalf("Next error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next error = %v, want DeadlineExceeded", err)
	}
}

func TestSubscriptionCancel(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	sub := nav.Subscribe()
	sub.Cancel()
	sub.Cancel() // idempotent

	// Channel drains its buffered replay, then reports closed.
	for {
		if _, ok := <-sub.States(); !ok {
			break
		}
	}
	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Next after Cancel error = %v, want ErrClosed", err)
	}

	// A cancelled subscription no longer receives emissions.
	if _, err := nav.Navigate(context.Background(), "/fast"); err != nil {
		t.Fatalf("Navigate error: %v", err)
	}
	if got := nav.Stats().Subscribers; got != 0 {
		t.Fatalf("Subscribers = %d, want 0", got)
	}
}

func TestSteadyStateFastPath(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	// Already steady at the newest generation: returns without waiting,
	// even under a cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state, err := nav.SteadyState(ctx)
	if err != nil {
		t.Fatalf("SteadyState error: %v", err)
	}
	if !state.Steady {
		t.Fatal("state not steady")
	}
}

func TestSteadyStateWaitsForSettle(t *testing.T) {
	site := newTestSite()
	slowGate := site.gate("/slow")
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	go func() {
		if _, err := nav.Navigate(context.Background(), "/slow"); err != nil {
			t.Errorf("Navigate error: %v", err)
		}
	}()
	deadline := time.Now().Add(2 * time.Second)
	for site.loads["/slow"].Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow loader never started")
		}
		time.Sleep(1 * time.Millisecond)
	}
	time.AfterFunc(20*time.Millisecond, func() { close(slowGate) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := nav.SteadyState(ctx)
	if err != nil {
		t.Fatalf("SteadyState error: %v", err)
	}
	if !state.Steady || state.URL.Pathname != "/slow" {
		t.Fatalf("state = (steady=%v, %q), want steady /slow", state.Steady, state.URL.Pathname)
	}
}

func TestSteadyStateHonorsContext(t *testing.T) {
	site := newTestSite()
	slowGate := site.gate("/slow")
	t.Cleanup(func() { close(slowGate) })
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	go func() {
		_, _ = nav.Navigate(context.Background(), "/slow")
	}()
	deadline := time.Now().Add(2 * time.Second)
	for site.loads["/slow"].Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow loader never started")
		}
		time.Sleep(1 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := nav.SteadyState(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("SteadyState error = %v, want DeadlineExceeded", err)
	}
}
