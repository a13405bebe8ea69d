package wayfind

import (
	"context"
	"sync"

	"github.com/wayfind-go/wayfind/pkg/router"
)

// Subscription is a replayable feed of routing states. The channel holds
// the latest state only: when the consumer lags, older undelivered states
// are replaced, never queued. The current state is delivered immediately
// on subscribe, so a new subscriber always has something to render.
type Subscription struct {
	nav  *Navigation
	id   uint64
	ch   chan *router.RoutingState
	once sync.Once
}

// Subscribe registers a new subscriber. Subscriptions on a closed
// Navigation are born closed.
func (n *Navigation) Subscribe() *Subscription {
	n.mu.Lock()
	s := &Subscription{nav: n, ch: make(chan *router.RoutingState, 1)}
	if n.closed {
		n.mu.Unlock()
		s.close()
		return s
	}
	s.id = n.nextSub
	n.nextSub++
	n.subs[s.id] = s
	count := len(n.subs)
	if n.current != nil {
		s.ch <- n.current
	}
	n.mu.Unlock()

	n.recordSubscribers(count)
	return s
}

// States returns the state channel. It is closed when the subscription is
// cancelled or the Navigation closes.
func (s *Subscription) States() <-chan *router.RoutingState {
	return s.ch
}

// Next blocks for the next state.
func (s *Subscription) Next(ctx context.Context) (*router.RoutingState, error) {
	select {
	case state, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		return state, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel removes the subscription and closes its channel. Idempotent.
func (s *Subscription) Cancel() {
	s.nav.mu.Lock()
	_, registered := s.nav.subs[s.id]
	delete(s.nav.subs, s.id)
	count := len(s.nav.subs)
	closed := s.nav.closed
	s.nav.mu.Unlock()

	s.close()
	if registered && !closed {
		s.nav.recordSubscribers(count)
	}
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// push delivers state, replacing an undelivered older one. The caller
// holds the navigation lock, which also orders pushes; push never blocks.
func (s *Subscription) push(state *router.RoutingState) {
	for {
		select {
		case s.ch <- state:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// SteadyState blocks until the newest navigation generation settles and
// returns its state. When the current state is already steady and no newer
// navigation is in flight, it returns immediately. The wait is bounded by
// ctx; a navigation abandoned mid-flight (cancelled context) settles no
// generation, so callers should pass a ctx they control.
func (n *Navigation) SteadyState(ctx context.Context) (*router.RoutingState, error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrClosed
	}
	if n.current != nil && n.current.Steady && n.emittedAt == n.generation.Load() {
		state := n.current
		n.mu.Unlock()
		return state, nil
	}
	id := n.nextWait
	n.nextWait++
	ch := make(chan *router.RoutingState, 1)
	n.waiters[id] = ch
	n.mu.Unlock()

	defer func() {
		n.mu.Lock()
		delete(n.waiters, id)
		n.mu.Unlock()
	}()

	select {
	case state := <-ch:
		return state, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-n.done:
		return nil, ErrClosed
	}
}
