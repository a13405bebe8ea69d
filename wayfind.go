// Package wayfind binds URL resolution to session history, turning a
// route tree into a live navigation state machine for a single-page app.
//
// This is the recommended import for most applications:
//
//	import "github.com/wayfind-go/wayfind"
//
// Usage:
//
//	nav, err := wayfind.New(wayfind.Config{Routes: routes})
//	if err != nil { ... }
//	defer nav.Close()
//
//	state, err := nav.Navigate(ctx, "/posts/hello")
//	sub := nav.Subscribe()
//	for state := range sub.States() { ... }
//
// A Navigation owns one history, one resolver cache, and a current
// router. Every location change (programmatic Navigate, history pops,
// context rotations) starts a new navigation generation; states from
// superseded generations are never emitted, while their underlying
// resolutions still settle and prime the cache.
package wayfind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayfind-go/wayfind/pkg/history"
	"github.com/wayfind-go/wayfind/pkg/resolver"
	"github.com/wayfind-go/wayfind/pkg/router"
	"github.com/wayfind-go/wayfind/pkg/urls"
)

// Navigation errors.
var (
	// ErrClosed is returned from operations on a closed Navigation.
	ErrClosed = errors.New("wayfind: navigation closed")

	// ErrSuperseded is returned from a navigation that a newer one
	// overtook. The superseded resolution settles internally (priming the
	// cache) but its state is never emitted.
	ErrSuperseded = errors.New("wayfind: navigation superseded")

	// ErrRedirectLoop is returned when following redirects exceeds
	// MaxRedirects for a single navigation.
	ErrRedirectLoop = errors.New("wayfind: redirect loop")

	// ErrPrefetchLimited is returned when a prefetch is dropped by the
	// rate limit or the concurrency cap. Callers typically ignore it.
	ErrPrefetchLimited = errors.New("wayfind: prefetch limited")
)

// MaxRedirects bounds redirect chains followed within one navigation.
const MaxRedirects = 10

// Recorder receives navigation lifecycle events, for metrics. All methods
// must be safe for concurrent use.
type Recorder interface {
	// NavigationStarted fires when a navigation generation begins.
	NavigationStarted(href string, action history.Action)

	// NavigationSettled fires when a generation reaches its steady state
	// (err nil), is superseded, or fails (err non-nil).
	NavigationSettled(href string, d time.Duration, err error)

	// SubscriberCount fires when the number of subscribers changes.
	SubscriberCount(n int)
}

// Config configures a Navigation. Routes is required; everything else
// has working defaults.
type Config struct {
	// Routes is the root of the route tree.
	Routes router.Node

	// Context is the application context value passed to loaders via
	// Env.Context. Replace it at runtime with SetContext.
	Context any

	// History is the session history. Defaults to an in-memory history
	// starting at "/".
	History history.History

	// Resolver caches segment resolutions. Defaults to a private resolver
	// capped at 256 entries. Supplying one allows custom TTL, size, and
	// hooks (see pkg/telemetry).
	Resolver *resolver.Resolver[router.Resolution]

	// Observers receive router-level resolution events.
	Observers []router.Observer

	// Recorder receives navigation-level lifecycle events.
	Recorder Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// PrefetchRate is the sustained prefetch budget in requests per
	// second. Zero means the default (5); negative disables the limit.
	PrefetchRate float64

	// PrefetchConcurrency caps concurrently running prefetches. Zero
	// means the default (2); negative disables the cap.
	PrefetchConcurrency int
}

// DefaultResolverEntries caps the default resolver when Config.Resolver
// is nil.
const DefaultResolverEntries = 256

// Navigation drives routing for one session: it resolves location changes
// against the current router, follows redirects through history, and
// publishes routing states to subscribers.
type Navigation struct {
	cfg     Config
	logger  *slog.Logger
	res     *resolver.Resolver[router.Resolution]
	history history.History

	// generation numbers navigations; only the newest generation may
	// emit states or settle waiters.
	generation atomic.Uint64

	mu        sync.Mutex
	rtr       *router.Router
	current   *router.RoutingState
	emittedAt uint64 // generation of current
	subs      map[uint64]*Subscription
	nextSub   uint64
	waiters   map[uint64]chan *router.RoutingState
	nextWait  uint64
	closed    bool

	done        chan struct{}
	stopHistory func()

	prefetchLim *rateLimiter
	prefetchSem *semaphore

	navigations  atomic.Uint64
	prefetches   atomic.Uint64
	dropped      atomic.Uint64
	emissions    atomic.Uint64
	rendersAcked atomic.Uint64
}

// New builds a Navigation and begins resolving the history's current
// location in the background; use SteadyState to await it.
func New(cfg Config) (*Navigation, error) {
	if cfg.Routes == nil {
		return nil, fmt.Errorf("wayfind: Config.Routes is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := cfg.Resolver
	if res == nil {
		res = resolver.New[router.Resolution](
			resolver.WithMaxEntries(DefaultResolverEntries),
			resolver.WithLogger(logger),
		)
	}
	hist := cfg.History
	if hist == nil {
		hist = history.NewMemory("/")
	}

	rate := cfg.PrefetchRate
	if rate == 0 {
		rate = defaultPrefetchRate
	}
	conc := cfg.PrefetchConcurrency
	if conc == 0 {
		conc = defaultPrefetchConcurrency
	}

	n := &Navigation{
		cfg:         cfg,
		logger:      logger,
		res:         res,
		history:     hist,
		subs:        make(map[uint64]*Subscription),
		waiters:     make(map[uint64]chan *router.RoutingState),
		done:        make(chan struct{}),
		prefetchLim: newRateLimiter(rate),
		prefetchSem: newSemaphore(conc),
	}
	n.rtr = n.buildRouter(cfg.Context)

	loc := hist.Location()
	n.current = &router.RoutingState{
		URL:    loc,
		Routes: []router.Route{{Type: router.RouteBusy, URL: loc}},
	}

	// External location changes (back/forward) re-resolve; pushes and
	// replaces issued by this Navigation already resolve inline.
	n.stopHistory = hist.Listen(func(d urls.Descriptor, action history.Action) {
		if action != history.ActionPop {
			return
		}
		go n.handlePop(d)
	})

	gen := n.generation.Add(1)
	go func() {
		if _, err := n.resolveGeneration(context.Background(), gen, loc, history.ActionPop); err != nil {
			n.logger.Debug("initial resolution aborted", "url", loc.Href, "err", err)
		}
	}()

	return n, nil
}

func (n *Navigation) buildRouter(contextValue any) *router.Router {
	opts := []router.Option{
		router.WithContext(contextValue),
		router.WithLogger(n.logger),
	}
	for _, o := range n.cfg.Observers {
		opts = append(opts, router.WithObserver(o))
	}
	return router.New(n.cfg.Routes, n.res, opts...)
}

// Router returns the current router. It changes identity on SetContext.
func (n *Navigation) Router() *router.Router {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rtr
}

// History returns the session history.
func (n *Navigation) History() history.History { return n.history }

// Resolver returns the resolver cache.
func (n *Navigation) Resolver() *resolver.Resolver[router.Resolution] { return n.res }

// Close stops history listening, fails pending waiters with ErrClosed,
// and closes all subscriptions. Close is idempotent.
func (n *Navigation) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := make([]*Subscription, 0, len(n.subs))
	for _, s := range n.subs {
		subs = append(subs, s)
	}
	n.subs = make(map[uint64]*Subscription)
	n.waiters = make(map[uint64]chan *router.RoutingState)
	n.mu.Unlock()

	close(n.done)
	if n.stopHistory != nil {
		n.stopHistory()
	}
	for _, s := range subs {
		s.close()
	}
	n.recordSubscribers(0)
	n.logger.Debug("navigation closed")
	return nil
}

func (n *Navigation) isClosed() bool {
	select {
	case <-n.done:
		return true
	default:
		return false
	}
}

func (n *Navigation) recordSubscribers(count int) {
	if n.cfg.Recorder != nil {
		n.cfg.Recorder.SubscriberCount(count)
	}
}

// Stats is a point-in-time snapshot of navigation counters.
type Stats struct {
	Navigations     uint64
	Prefetches      uint64
	PrefetchDropped uint64
	Emissions       uint64
	RendersAcked    uint64
	Subscribers     int
	Generation      uint64
	Resolver        resolver.Stats
}

// Stats returns current counters.
func (n *Navigation) Stats() Stats {
	n.mu.Lock()
	subs := len(n.subs)
	n.mu.Unlock()
	return Stats{
		Navigations:     n.navigations.Load(),
		Prefetches:      n.prefetches.Load(),
		PrefetchDropped: n.dropped.Load(),
		Emissions:       n.emissions.Load(),
		RendersAcked:    n.rendersAcked.Load(),
		Subscribers:     subs,
		Generation:      n.generation.Load(),
		Resolver:        n.res.Stats(),
	}
}
