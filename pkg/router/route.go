package router

import (
	"github.com/wayfind-go/wayfind/pkg/urls"
)

// RouteType classifies one resolved level of a route chain.
type RouteType int

const (
	// RouteSwitch is a resolved branching level (e.g. a section layout).
	RouteSwitch RouteType = iota

	// RoutePage is a resolved leaf with displayable content.
	RoutePage

	// RouteRedirect carries a target URL in To; the router never follows
	// it, callers (history integration) act on it.
	RouteRedirect

	// RouteBusy is a placeholder for a segment whose content is still
	// resolving. It appears only in non-steady states.
	RouteBusy

	// RouteNotFound marks a pathname with no matching route. It is a
	// normal, representable outcome, not an error.
	RouteNotFound

	// RouteError marks a segment whose loader failed; Err carries the
	// failure and deeper segments are not resolved.
	RouteError
)

func (t RouteType) String() string {
	switch t {
	case RouteSwitch:
		return "switch"
	case RoutePage:
		return "page"
	case RouteRedirect:
		return "redirect"
	case RouteBusy:
		return "busy"
	case RouteNotFound:
		return "notfound"
	case RouteError:
		return "error"
	default:
		return "unknown"
	}
}

// Route is one resolved level of a route chain, root to leaf. Later
// routes are nested within earlier ones.
type Route struct {
	// Type classifies this level.
	Type RouteType

	// URL locates this level: the pathname matched so far plus the
	// request's search and hash.
	URL urls.Descriptor

	// Title and Meta describe this level's document metadata.
	Title string
	Meta  map[string]string

	// Content is this level's resolved content. It is nil while busy,
	// for redirects, and under meta-only resolution.
	Content any

	// To is the redirect target when Type is RouteRedirect.
	To string

	// Params are the accumulated captures down to this level.
	Params map[string]string

	// Err is the loader failure when Type is RouteError.
	Err error
}

// RoutingState is the aggregate outcome of resolving one URL: the route
// chain so far and whether any async work remains.
type RoutingState struct {
	// URL is the requested, normalized URL.
	URL urls.Descriptor

	// Routes is the chain, one route per matched level, root first.
	Routes []Route

	// Steady is true once every level has settled: no pending content
	// remains for this URL.
	Steady bool

	// Err is the first loader failure, nil otherwise. Not-found outcomes
	// do not set Err.
	Err error
}

// Busy reports whether resolution work is still pending.
func (s RoutingState) Busy() bool { return !s.Steady }

// LastRoute returns the deepest route of the chain.
func (s RoutingState) LastRoute() (Route, bool) {
	if len(s.Routes) == 0 {
		return Route{}, false
	}
	return s.Routes[len(s.Routes)-1], true
}

// Title returns the deepest non-empty route title, or "".
func (s RoutingState) Title() string {
	for i := len(s.Routes) - 1; i >= 0; i-- {
		if s.Routes[i].Title != "" {
			return s.Routes[i].Title
		}
	}
	return ""
}

// Redirect returns the redirect target if the chain ends in one.
func (s RoutingState) Redirect() (string, bool) {
	if last, ok := s.LastRoute(); ok && last.Type == RouteRedirect {
		return last.To, true
	}
	return "", false
}

// NotFound reports whether the chain ends in a not-found route.
func (s RoutingState) NotFound() bool {
	last, ok := s.LastRoute()
	return ok && last.Type == RouteNotFound
}
