package router

import "net/url"

// Method selects the resolution granularity, mirroring HTTP semantics:
// GET resolves full content, HEAD resolves titles and metadata only.
// Meta-only resolution lets site-map generation and link prefetch probes
// skip expensive content loaders.
type Method string

const (
	MethodGet  Method = "GET"
	MethodHead Method = "HEAD"
)

// Env is the read-only view passed to content loaders and redirect target
// functions. It describes the match that led to this node.
type Env struct {
	// Context is the router's root context value, an application-supplied
	// handle (current user, locale, API client). Not a context.Context.
	Context any

	// Method is the resolution granularity for this request.
	Method Method

	// Params are the accumulated ":name" captures from the root down to
	// this node, percent-decoded.
	Params map[string]string

	// Pathname is the portion of the requested pathname matched so far,
	// always absolute.
	Pathname string

	// Query holds the request's parsed query values.
	Query url.Values

	// Router is the resolving router; loaders may call Router.Resolve to
	// resolve other paths (e.g. an index page embedding post summaries).
	Router *Router

	// Unmatched is the remainder of the requested pathname that deeper
	// nodes will consume, "" at the leaf. It always starts with "/" when
	// non-empty.
	Unmatched string
}

// Param returns the named capture, or "" when absent.
func (e Env) Param(name string) string {
	return e.Params[name]
}
