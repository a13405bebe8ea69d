// Package router resolves URLs against a declarative route tree.
//
// The router provides:
//   - A route tree of switches, pages, redirects, and lazy nodes
//   - Longest-match path resolution with ":name" parameter captures
//   - Cached, coalesced content resolution through pkg/resolver
//   - Route chains with busy, not-found, and error levels as plain data
//   - Static site-map enumeration over the same resolution path
//
// # Route Trees
//
// Trees are built from four node constructors:
//
//	routes := router.Switch(router.SwitchConfig{Mappings: []router.Mapping{
//	    {Path: "/", Node: router.Page(router.PageConfig{Title: "Home"})},
//	    {Path: "/posts", Node: router.Switch(router.SwitchConfig{Mappings: []router.Mapping{
//	        {Path: "/", Node: postsIndex},
//	        {Path: "/:slug", Node: postPage},
//	    }})},
//	    {Path: "/blog", Node: router.Redirect("/posts")},
//	    {Path: "/admin", Node: router.Lazy(loadAdmin)},
//	}})
//
// Within a switch, the mapping consuming the most segments wins, static
// segments beat parameter captures at equal length, and registration order
// breaks remaining ties. The "/" mapping is the index route, matched when
// nothing of the pathname remains. There is no backtracking: once a level
// picks a mapping, deeper mismatches surface as a not-found route.
//
// # Resolution
//
// Resolve walks the matched chain root to leaf, resolving each level's
// content through the router's resolver so concurrent resolutions of the
// same segment coalesce and repeat visits hit the cache:
//
//	r := router.New(routes, nil)
//	state, err := r.Resolve(ctx, "/posts/hello?ref=home")
//
// The returned RoutingState is steady and holds one Route per level. A
// pathname that matches nothing ends in a RouteNotFound route, and a
// failed loader ends in a RouteError route with deeper levels unresolved;
// neither is an error return. Redirect routes carry their target in To and
// are never followed by the router itself.
//
// # Context Changes
//
// Routers are immutable. When the application context changes (sign-in,
// locale switch), build a replacement router over the same resolver and
// Retire the old one; retiring purges the old router's cache scope so
// stale resolutions cannot be served.
package router
