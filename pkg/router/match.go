package router

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/wayfind-go/wayfind/pkg/urls"
)

// maxChainDepth bounds the walk so a switch whose index mapping loops back
// into itself cannot spin forever.
const maxChainDepth = 64

// step is one matched level of a chain walk.
type step struct {
	// node is the concrete (lazy-resolved) node at this level.
	node Node

	// pathname is the requested pathname consumed up to and including
	// this level.
	pathname string

	// params are the captures accumulated down to this level.
	params map[string]string

	// unmatched is the pathname remainder handed to deeper levels, ""
	// at the leaf, "/"-prefixed otherwise.
	unmatched string
}

// matchChain walks the route tree against pathname. The returned steps
// cover the matched prefix, root node first. found reports whether the
// walk ended on a leaf (or index) that fully consumed the pathname; when
// false the remainder is unroutable and the caller surfaces a not-found
// route. A lazy-node load failure is returned as a LoaderError alongside
// the steps matched before it.
//
// Matching is greedy per level: the mapping consuming the most segments
// wins, static segments beat parameter captures at equal length, and
// registration order breaks remaining ties. There is no backtracking
// across levels.
func (r *Router) matchChain(ctx context.Context, pathname string) ([]step, bool, error) {
	rest := splitPath(pathname)

	root, err := concrete(ctx, r.root)
	if err != nil {
		return nil, false, &LoaderError{Path: "/", Err: err}
	}

	// A non-switch root routes only "/".
	sw, ok := root.(*switchNode)
	if !ok {
		if len(rest) > 0 {
			return nil, false, nil
		}
		st := step{node: root, pathname: "/", params: map[string]string{}}
		return []step{st}, true, nil
	}

	var steps []step
	params := map[string]string{}
	matched := "/"

	// The root switch is itself a chain level (typically the site layout).
	steps = append(steps, step{
		node:      sw,
		pathname:  "/",
		params:    map[string]string{},
		unmatched: remainder(rest),
	})

	for depth := 0; ; depth++ {
		if depth >= maxChainDepth {
			return steps, false, fmt.Errorf("router: chain exceeds %d levels at %s", maxChainDepth, matched)
		}

		m, consumed, ok := sw.bestMatch(rest)
		if !ok {
			return steps, false, nil
		}

		for j, ps := range m.segments[:consumed] {
			if ps.param == "" {
				continue
			}
			val, err := urls.DecodeSegment(rest[j])
			if err != nil {
				val = rest[j]
			}
			params[ps.param] = val
		}
		if consumed > 0 {
			matched = urls.Join(matched, strings.Join(rest[:consumed], "/"))
			rest = rest[consumed:]
		}

		child, err := concrete(ctx, m.node)
		if err != nil {
			return steps, false, &LoaderError{Path: matched, Err: err}
		}

		next, isSwitch := child.(*switchNode)
		if !isSwitch && len(rest) > 0 {
			// Pages and redirects are leaves; a leftover remainder means
			// nothing can consume it, so the walk dead-ends above them.
			return steps, false, nil
		}

		steps = append(steps, step{
			node:      child,
			pathname:  matched,
			params:    maps.Clone(params),
			unmatched: remainder(rest),
		})

		if !isSwitch {
			return steps, true, nil
		}
		sw = next
	}
}

// bestMatch selects the winning mapping for the remaining segments.
func (n *switchNode) bestMatch(rest []string) (mapping, int, bool) {
	bestIdx, bestConsumed, bestStatic := -1, -1, -1

	for i, m := range n.mappings {
		if m.index {
			// The index route matches only a fully consumed pathname.
			if len(rest) == 0 && bestConsumed < 0 {
				bestIdx, bestConsumed, bestStatic = i, 0, 0
			}
			continue
		}
		if len(m.segments) > len(rest) {
			continue
		}

		static, ok := 0, true
		for j, ps := range m.segments {
			if ps.param != "" {
				if rest[j] == "" {
					ok = false
					break
				}
				continue
			}
			if ps.literal != rest[j] {
				ok = false
				break
			}
			static++
		}
		if !ok {
			continue
		}

		consumed := len(m.segments)
		if consumed > bestConsumed || (consumed == bestConsumed && static > bestStatic) {
			bestIdx, bestConsumed, bestStatic = i, consumed, static
		}
	}

	if bestIdx < 0 {
		return mapping{}, 0, false
	}
	return n.mappings[bestIdx], bestConsumed, true
}

// splitPath splits a pathname into segments.
func splitPath(pathname string) []string {
	pathname = strings.Trim(pathname, "/")
	if pathname == "" {
		return nil
	}
	return strings.Split(pathname, "/")
}

// remainder renders leftover segments as an absolute sub-path.
func remainder(rest []string) string {
	if len(rest) == 0 {
		return ""
	}
	return "/" + strings.Join(rest, "/")
}
