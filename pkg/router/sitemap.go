package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wayfind-go/wayfind/pkg/urls"
)

// =============================================================================
// Site map
// =============================================================================

// SiteMap is the statically enumerable surface of a route tree: every
// page and redirect reachable without parameter captures.
type SiteMap struct {
	// Pages maps each enumerable pathname to its resolved leaf route.
	Pages map[string]*Route

	// Redirects maps each enumerable redirect pathname to its target.
	Redirects map[string]string
}

// PagePaths returns the page pathnames in sorted order.
func (m *SiteMap) PagePaths() []string {
	paths := make([]string, 0, len(m.Pages))
	for p := range m.Pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// RedirectPaths returns the redirect pathnames in sorted order.
func (m *SiteMap) RedirectPaths() []string {
	paths := make([]string, 0, len(m.Redirects))
	for p := range m.Redirects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type siteMapConfig struct {
	withContent bool
}

// SiteMapOption configures ResolveSiteMap.
type SiteMapOption func(*siteMapConfig)

// WithContent resolves full page content for every site-map entry instead
// of titles and metadata only.
func WithContent() SiteMapOption {
	return func(c *siteMapConfig) { c.withContent = true }
}

// ResolveSiteMap enumerates every static pathname under root and resolves
// each through the router's normal resolution path, so site-map entries
// coalesce with and prime the same cache as live navigation. Mappings with
// parameter captures are skipped, since their concrete pathnames cannot be
// enumerated. The result is deterministic for a given tree: map contents
// do not depend on resolution order.
//
// Without WithContent, entries resolve meta-only (MethodHead): titles,
// metadata, and redirect targets, but no content loads.
func (r *Router) ResolveSiteMap(ctx context.Context, root string, opts ...SiteMapOption) (*SiteMap, error) {
	if r.retired.Load() {
		return nil, ErrRouterRetired
	}
	var cfg siteMapConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	base, err := urls.Parse(root)
	if err != nil {
		return nil, err
	}

	paths, err := r.staticPaths(ctx)
	if err != nil {
		return nil, err
	}

	method := MethodHead
	if cfg.withContent {
		method = MethodGet
	}

	sm := &SiteMap{
		Pages:     make(map[string]*Route),
		Redirects: make(map[string]string),
	}
	for _, p := range paths {
		if !underPrefix(p, base.Pathname) {
			continue
		}
		state, err := r.Resolve(ctx, p, WithMethod(method))
		if err != nil {
			return nil, err
		}
		if state.Err != nil {
			return nil, state.Err
		}
		last, ok := state.LastRoute()
		if !ok {
			continue
		}
		switch last.Type {
		case RoutePage:
			rt := last
			sm.Pages[p] = &rt
		case RouteRedirect:
			sm.Redirects[p] = last.To
		}
	}
	return sm, nil
}

// staticPaths walks the tree structure collecting every leaf pathname
// reachable through parameterless mappings, sorted.
func (r *Router) staticPaths(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	var walk func(n Node, base string, depth int) error
	walk = func(n Node, base string, depth int) error {
		if depth >= maxChainDepth {
			return fmt.Errorf("router: site map exceeds %d levels at %s", maxChainDepth, base)
		}
		node, err := concrete(ctx, n)
		if err != nil {
			return &LoaderError{Path: base, Err: err}
		}
		sw, ok := node.(*switchNode)
		if !ok {
			if !seen[base] {
				seen[base] = true
				out = append(out, base)
			}
			return nil
		}
		for _, m := range sw.mappings {
			if m.index {
				if err := walk(m.node, base, depth+1); err != nil {
					return err
				}
				continue
			}
			if hasParams(m) {
				continue
			}
			if err := walk(m.node, urls.Join(base, m.raw), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(r.root, "/", 0); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func hasParams(m mapping) bool {
	for _, s := range m.segments {
		if s.param != "" {
			return true
		}
	}
	return false
}

func underPrefix(pathname, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return pathname == prefix || strings.HasPrefix(pathname, prefix+"/")
}
