package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/wayfind-go/wayfind/pkg/resolver"
	"github.com/wayfind-go/wayfind/pkg/urls"
)

// =============================================================================
// Router
// =============================================================================

// Router resolves URLs against a route tree, producing route chains. A
// Router is immutable after New and safe for concurrent use; all mutable
// resolution state lives in its resolver, isolated under the router's
// cache scope.
type Router struct {
	root      Node
	res       *resolver.Resolver[Resolution]
	scope     uint64
	context   any
	logger    *slog.Logger
	observers []Observer
	retired   atomic.Bool
}

// Resolution is one resolved segment's payload, the value a Router stores
// in its resolver cache.
type Resolution struct {
	Kind    Kind
	Title   string
	Meta    map[string]string
	Content any
	To      string
}

// scopes issues a distinct cache scope to every Router, so routers built
// over a shared resolver never see each other's entries.
var scopes atomic.Uint64

// Option configures a Router.
type Option func(*Router)

// WithContext sets the application context value handed to every loader
// via Env.Context. Routers are immutable; to change the context, build a
// replacement router and retire this one.
func WithContext(v any) Option {
	return func(r *Router) { r.context = v }
}

// WithObserver registers an observer for resolution lifecycle events.
// Observers fire in registration order.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observers = append(r.observers, o) }
}

// WithLogger sets the router's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New builds a Router over root. res caches segment resolutions and may be
// shared across routers; nil creates a private unbounded resolver. New
// panics on a nil root, since route trees are wired statically at startup.
func New(root Node, res *resolver.Resolver[Resolution], opts ...Option) *Router {
	if root == nil {
		panic("router: nil root node")
	}
	if res == nil {
		res = resolver.New[Resolution]()
	}
	r := &Router{
		root:   root,
		res:    res,
		scope:  scopes.Add(1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Context returns the application context value loaders receive.
func (r *Router) Context() any { return r.context }

// Scope returns the router's cache scope.
func (r *Router) Scope() uint64 { return r.scope }

// Resolver returns the resolver backing this router.
func (r *Router) Resolver() *resolver.Resolver[Resolution] { return r.res }

// Retire marks the router as superseded and purges its cache scope.
// Subsequent Resolve calls fail with ErrRouterRetired; resolutions already
// in flight settle normally but their results are no longer cached. Retire
// returns the number of purged entries.
func (r *Router) Retire() int {
	r.retired.Store(true)
	n := r.res.PurgeScope(r.scope)
	r.logger.Debug("router retired", "scope", r.scope, "purged", n)
	return n
}

// Retired reports whether Retire has been called.
func (r *Router) Retired() bool { return r.retired.Load() }

// =============================================================================
// Resolution options
// =============================================================================

type resolveConfig struct {
	method   Method
	onUpdate func(RoutingState)
}

// ResolveOption configures one Resolve call.
type ResolveOption func(*resolveConfig)

// WithMethod sets the resolution granularity. Defaults to MethodGet.
func WithMethod(m Method) ResolveOption {
	return func(c *resolveConfig) { c.method = m }
}

// WithUpdates delivers each busy partial state to fn as segments settle,
// in the calling goroutine. Partial states are monotonic: each extends the
// previous chain and ends in a busy route. The final steady state is the
// Resolve return value and is not delivered to fn.
func WithUpdates(fn func(RoutingState)) ResolveOption {
	return func(c *resolveConfig) { c.onUpdate = fn }
}

func (c *resolveConfig) emit(s RoutingState) {
	if c.onUpdate != nil {
		c.onUpdate(s)
	}
}

// =============================================================================
// Resolve
// =============================================================================

// Resolve parses input and resolves it against the route tree. The
// returned state is always steady; a not-found pathname or a failed loader
// is reported inside the state, not as an error. Resolve itself errors
// only when the input is not a valid app-relative URL, the router is
// retired, or ctx is cancelled.
func (r *Router) Resolve(ctx context.Context, input string, opts ...ResolveOption) (*RoutingState, error) {
	u, err := urls.Parse(input)
	if err != nil {
		return nil, err
	}
	return r.ResolveURL(ctx, u, opts...)
}

// ResolveURL is Resolve for an already parsed URL.
func (r *Router) ResolveURL(ctx context.Context, u urls.Descriptor, opts ...ResolveOption) (*RoutingState, error) {
	if r.retired.Load() {
		return nil, ErrRouterRetired
	}
	cfg := resolveConfig{method: MethodGet}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	ctx = r.observeStart(ctx, u.Href, cfg.method)

	// The first partial carries no resolved levels yet; it stands in while
	// the tree is matched and lazy nodes load.
	cfg.emit(RoutingState{
		URL:    u,
		Routes: []Route{{Type: RouteBusy, URL: u}},
	})

	steps, found, matchErr := r.matchChain(ctx, u.Pathname)
	if matchErr != nil && isContextErr(matchErr, ctx) {
		return nil, ctx.Err()
	}

	state := &RoutingState{URL: u}
	routes := make([]Route, 0, len(steps)+1)

	for i, st := range steps {
		segStart := time.Now()
		res, err := r.resolveStep(ctx, st, u, cfg.method, i)
		r.observeSegment(ctx, st.pathname, cfg.method, time.Since(segStart), err)

		if err != nil {
			if isContextErr(err, ctx) {
				return nil, ctx.Err()
			}
			lerr := &LoaderError{Path: st.pathname, Err: err}
			state.Err = lerr
			routes = append(routes, Route{
				Type:   RouteError,
				URL:    levelURL(st.pathname, u),
				Params: st.params,
				Err:    lerr,
			})
			return r.finish(ctx, cfg, start, state, routes), nil
		}

		routes = append(routes, routeFor(st, res, u))
		if i < len(steps)-1 {
			cfg.emit(RoutingState{
				URL:    u,
				Routes: append(routes[:len(routes):len(routes)], Route{Type: RouteBusy, URL: u}),
			})
		}
	}

	switch {
	case matchErr != nil:
		state.Err = matchErr
		errURL := u
		var lerr *LoaderError
		if errors.As(matchErr, &lerr) {
			errURL = levelURL(lerr.Path, u)
		}
		routes = append(routes, Route{
			Type:   RouteError,
			URL:    errURL,
			Params: lastParams(steps),
			Err:    matchErr,
		})
	case !found:
		routes = append(routes, Route{
			Type:   RouteNotFound,
			URL:    u,
			Params: lastParams(steps),
		})
	}

	return r.finish(ctx, cfg, start, state, routes), nil
}

func (r *Router) finish(ctx context.Context, cfg resolveConfig, start time.Time, state *RoutingState, routes []Route) *RoutingState {
	state.Routes = routes
	state.Steady = true
	d := time.Since(start)
	r.observeFinish(ctx, state.URL.Href, cfg.method, d, *state)
	r.logger.Debug("url resolved",
		"url", state.URL.Href,
		"method", string(cfg.method),
		"routes", len(state.Routes),
		"err", state.Err,
		"duration", d,
	)
	return state
}

// resolveStep resolves one matched level through the resolver, so that
// concurrent resolutions of the same level coalesce and repeat visits hit
// the cache. The key's variant carries method and depth: meta-only and
// full resolutions cache separately, and a switch and its index child
// (which share a pathname) never collide.
func (r *Router) resolveStep(ctx context.Context, st step, u urls.Descriptor, method Method, depth int) (Resolution, error) {
	key := resolver.Key{
		Scope:   r.scope,
		Path:    st.pathname,
		Variant: string(method) + ":" + strconv.Itoa(depth),
	}
	env := Env{
		Context:   r.context,
		Method:    method,
		Params:    st.params,
		Pathname:  st.pathname,
		Query:     u.Query,
		Router:    r,
		Unmatched: st.unmatched,
	}
	node := st.node
	res, err := r.res.Resolve(ctx, key, func(ctx context.Context) (Resolution, error) {
		return resolveNode(ctx, node, env)
	})
	// A failed level must not pin its rejection: resolving the URL again
	// retries the loader. Abandoning a wait is not a failure, and forgetting
	// here would detach the in-flight load from the cache.
	if err != nil && !isContextErr(err, ctx) {
		r.res.Forget(key)
	}
	return res, err
}

// resolveNode produces the Resolution for a concrete node.
func resolveNode(ctx context.Context, n Node, env Env) (Resolution, error) {
	switch node := n.(type) {
	case *switchNode:
		return contentResolution(ctx, env, KindSwitch, node.title, node.meta, node.content, node.getContent)
	case *pageNode:
		return contentResolution(ctx, env, KindPage, node.title, node.meta, node.content, node.getContent)
	case *redirectNode:
		to, err := node.resolveTarget(env)
		if err != nil {
			return Resolution{}, err
		}
		if _, err := urls.Parse(to); err != nil {
			return Resolution{}, fmt.Errorf("redirect target %q: %w", to, err)
		}
		return Resolution{Kind: KindRedirect, To: to}, nil
	default:
		return Resolution{}, fmt.Errorf("unresolvable node kind %s", n.Kind())
	}
}

func contentResolution(ctx context.Context, env Env, kind Kind, title string, meta map[string]string, static any, get ContentFunc) (Resolution, error) {
	res := Resolution{Kind: kind, Title: title, Meta: meta}
	if env.Method == MethodHead {
		return res, nil
	}
	res.Content = static
	if get != nil {
		content, err := get(ctx, env)
		if err != nil {
			return Resolution{}, err
		}
		res.Content = content
	}
	return res, nil
}

// routeFor converts a resolved step into its chain route.
func routeFor(st step, res Resolution, u urls.Descriptor) Route {
	rt := Route{
		URL:     levelURL(st.pathname, u),
		Title:   res.Title,
		Meta:    res.Meta,
		Content: res.Content,
		Params:  st.params,
	}
	switch res.Kind {
	case KindPage:
		rt.Type = RoutePage
	case KindRedirect:
		rt.Type = RouteRedirect
		rt.To = res.To
	default:
		rt.Type = RouteSwitch
	}
	return rt
}

// levelURL is the URL of one chain level: the pathname matched so far plus
// the request's search and hash.
func levelURL(pathname string, req urls.Descriptor) urls.Descriptor {
	if pathname == req.Pathname {
		return req
	}
	d, err := urls.New(pathname, req.Search, req.Hash)
	if err != nil {
		// Matched pathnames come from an already normalized request; a
		// failure here leaves a bare but usable descriptor.
		return urls.Descriptor{Pathname: pathname, Href: pathname}
	}
	return d
}

func lastParams(steps []step) map[string]string {
	if len(steps) == 0 {
		return nil
	}
	return steps[len(steps)-1].params
}
