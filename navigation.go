package wayfind

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wayfind-go/wayfind/pkg/history"
	"github.com/wayfind-go/wayfind/pkg/router"
	"github.com/wayfind-go/wayfind/pkg/urls"
)

// =============================================================================
// Navigate
// =============================================================================

type navigateConfig struct {
	replace bool
	params  map[string]string
}

// NavigateOption configures programmatic navigation.
type NavigateOption func(*navigateConfig)

// WithReplace replaces the current history entry instead of pushing.
func WithReplace() NavigateOption {
	return func(c *navigateConfig) { c.replace = true }
}

// WithParams sets query parameters on the navigation URL, overriding any
// same-named parameters already in the href.
func WithParams(params map[string]string) NavigateOption {
	return func(c *navigateConfig) { c.params = params }
}

// Navigate records href in history and resolves it, blocking until the
// navigation settles. href may be relative ("edit", "?page=2", "#top");
// it resolves against the current location.
//
// The returned state is steady for the final URL after any redirects.
// Loader failures and unmatched pathnames are reported inside the state
// (state.Err, state.NotFound()), not as an error. Navigate errors when
// href is invalid, the navigation is closed or superseded, or ctx is
// cancelled.
func (n *Navigation) Navigate(ctx context.Context, href string, opts ...NavigateOption) (*router.RoutingState, error) {
	if n.isClosed() {
		return nil, ErrClosed
	}
	var cfg navigateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	d, err := urls.Resolve(n.history.Location(), href)
	if err != nil {
		return nil, err
	}
	if len(cfg.params) > 0 {
		d, err = withParams(d, cfg.params)
		if err != nil {
			return nil, err
		}
	}

	gen := n.generation.Add(1)
	n.navigations.Add(1)

	action := history.ActionPush
	var herr error
	if cfg.replace {
		action = history.ActionReplace
		herr = n.history.Replace(d)
	} else {
		herr = n.history.Push(d)
	}
	if herr != nil {
		return nil, herr
	}

	return n.resolveGeneration(ctx, gen, d, action)
}

func withParams(d urls.Descriptor, params map[string]string) (urls.Descriptor, error) {
	merged := url.Values{}
	for k, vs := range d.Query {
		merged[k] = append([]string(nil), vs...)
	}
	for k, v := range params {
		merged.Set(k, v)
	}
	return urls.Complete(urls.Descriptor{
		Pathname: d.Pathname,
		Query:    merged,
		Hash:     d.Hash,
	})
}

// handlePop re-resolves after an external history movement.
func (n *Navigation) handlePop(d urls.Descriptor) {
	if n.isClosed() {
		return
	}
	gen := n.generation.Add(1)
	n.navigations.Add(1)
	if _, err := n.resolveGeneration(context.Background(), gen, d, history.ActionPop); err != nil {
		n.logger.Debug("pop resolution aborted", "url", d.Href, "err", err)
	}
}

// =============================================================================
// Context rotation
// =============================================================================

// SetContext replaces the application context value, retires the current
// router (purging its cached resolutions), and re-resolves the current
// location against a fresh router. In-flight navigations are superseded.
func (n *Navigation) SetContext(ctx context.Context, value any) (*router.RoutingState, error) {
	if n.isClosed() {
		return nil, ErrClosed
	}

	gen := n.generation.Add(1)

	n.mu.Lock()
	old := n.rtr
	n.rtr = n.buildRouter(value)
	n.cfg.Context = value
	n.mu.Unlock()

	purged := old.Retire()
	n.logger.Debug("context rotated", "purged", purged, "scope", old.Scope())

	return n.resolveGeneration(ctx, gen, n.history.Location(), history.ActionReplace)
}

// =============================================================================
// Resolution driving
// =============================================================================

// resolveGeneration resolves d for generation gen, following redirects,
// and emits states while gen remains the newest generation.
func (n *Navigation) resolveGeneration(ctx context.Context, gen uint64, d urls.Descriptor, action history.Action) (*router.RoutingState, error) {
	start := time.Now()
	if n.cfg.Recorder != nil {
		n.cfg.Recorder.NavigationStarted(d.Href, action)
	}

	state, err := n.resolveFollowingRedirects(ctx, gen, d)

	if n.cfg.Recorder != nil {
		n.cfg.Recorder.NavigationSettled(d.Href, time.Since(start), err)
	}
	return state, err
}

func (n *Navigation) resolveFollowingRedirects(ctx context.Context, gen uint64, d urls.Descriptor) (*router.RoutingState, error) {
	for hop := 0; ; hop++ {
		if hop > MaxRedirects {
			return nil, fmt.Errorf("%w: %d hops resolving %s", ErrRedirectLoop, hop, d.Href)
		}

		rtr := n.Router()
		state, err := rtr.ResolveURL(ctx, d, router.WithUpdates(func(partial router.RoutingState) {
			p := partial
			n.emit(gen, &p)
		}))

		// Supersession is checked after the walk settles: the walk is never
		// cancelled just because a newer navigation started, so its segment
		// resolutions finish and stay cached for the next visit.
		if n.generation.Load() != gen {
			return nil, ErrSuperseded
		}
		if err != nil {
			return nil, err
		}

		target, ok := state.Redirect()
		if !ok {
			n.emit(gen, state)
			return state, nil
		}

		// Redirect steady states are not emitted; the chain continues on
		// the target URL under the same generation, replacing the history
		// entry the way a browser handles a server-side redirect.
		next, rerr := urls.Resolve(d, target)
		if rerr != nil {
			return nil, fmt.Errorf("wayfind: redirect target %q: %w", target, rerr)
		}
		if herr := n.history.Replace(next); herr != nil {
			return nil, herr
		}
		n.logger.Debug("redirect followed", "from", d.Href, "to", next.Href, "hop", hop+1)
		d = next
	}
}

// emit publishes state as the current state if gen is still the newest
// generation. Stale and post-close emissions are dropped. Steady states
// settle SteadyState waiters.
func (n *Navigation) emit(gen uint64, state *router.RoutingState) bool {
	n.mu.Lock()
	if n.closed || gen != n.generation.Load() {
		n.mu.Unlock()
		return false
	}
	n.current = state
	n.emittedAt = gen
	n.emissions.Add(1)

	for _, s := range n.subs {
		s.push(state)
	}

	var settled []chan *router.RoutingState
	if state.Steady {
		for id, ch := range n.waiters {
			settled = append(settled, ch)
			delete(n.waiters, id)
		}
	}
	n.mu.Unlock()

	for _, ch := range settled {
		ch <- state
	}
	return true
}

// Current returns the most recently emitted state. It is never nil after
// New; before the first resolution settles it is a busy placeholder for
// the initial location.
func (n *Navigation) Current() *router.RoutingState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}
