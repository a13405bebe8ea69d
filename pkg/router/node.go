package router

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Kind is the discriminant tag of a route tree node.
type Kind int

const (
	// KindSwitch is a branching node mapping path patterns to children.
	KindSwitch Kind = iota

	// KindPage is a leaf node producing displayable content.
	KindPage

	// KindRedirect is a leaf node signaling a target URL instead of content.
	KindRedirect

	// KindLazy is a deferred node; resolving it yields its concrete variant.
	KindLazy
)

func (k Kind) String() string {
	switch k {
	case KindSwitch:
		return "switch"
	case KindPage:
		return "page"
	case KindRedirect:
		return "redirect"
	case KindLazy:
		return "lazy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one node of the declarative route tree. Implementations are
// created with Switch, Page, Redirect, RedirectTo, and Lazy; the router
// branches on Kind rather than type-switching on concrete types.
type Node interface {
	Kind() Kind
}

// ContentFunc produces a node's content. It runs at resolution time with
// the matched environment; results are cached by the router's resolver.
type ContentFunc func(ctx context.Context, env Env) (any, error)

// TargetFunc computes a redirect target from the matched environment.
type TargetFunc func(env Env) (string, error)

// LoaderFunc loads a deferred node, typically from a code-split chunk or
// a remote route manifest.
type LoaderFunc func(ctx context.Context) (Node, error)

// Mapping binds one path pattern to a child node. Pattern segments
// starting with ":" capture the corresponding URL segment as a parameter;
// the pattern "/" is the index route, matched when nothing remains.
type Mapping struct {
	Path string
	Node Node
}

// =============================================================================
// Switch
// =============================================================================

// SwitchConfig configures a branching node.
type SwitchConfig struct {
	// Mappings are the child routes in registration order. Registration
	// order breaks match-priority ties; paths must be unique.
	Mappings []Mapping

	// Title and Meta describe the switch itself (e.g. a section heading).
	Title string
	Meta  map[string]string

	// Content or GetContent supply the switch's own content, typically a
	// layout wrapper. Both may be unset.
	Content    any
	GetContent ContentFunc
}

type switchNode struct {
	mappings   []mapping
	title      string
	meta       map[string]string
	content    any
	getContent ContentFunc
}

// mapping is a compiled child pattern.
type mapping struct {
	raw      string
	segments []patternSegment
	index    bool // the "/" mapping
	node     Node
}

// patternSegment matches one URL segment: either a literal or a ":name"
// capture.
type patternSegment struct {
	literal string
	param   string
}

// Switch builds a branching node from cfg. It panics on an invalid or
// duplicate mapping path, since route trees are built statically at
// startup.
func Switch(cfg SwitchConfig) Node {
	n := &switchNode{
		title:      cfg.Title,
		meta:       cfg.Meta,
		content:    cfg.Content,
		getContent: cfg.GetContent,
		mappings:   make([]mapping, 0, len(cfg.Mappings)),
	}
	seen := make(map[string]bool, len(cfg.Mappings))
	for _, m := range cfg.Mappings {
		compiled, err := compileMapping(m)
		if err != nil {
			panic("router: " + err.Error())
		}
		if seen[compiled.raw] {
			panic(fmt.Sprintf("router: duplicate mapping %q", compiled.raw))
		}
		seen[compiled.raw] = true
		n.mappings = append(n.mappings, compiled)
	}
	return n
}

func (n *switchNode) Kind() Kind { return KindSwitch }

func compileMapping(m Mapping) (mapping, error) {
	if m.Node == nil {
		return mapping{}, fmt.Errorf("mapping %q has a nil node", m.Path)
	}
	if !strings.HasPrefix(m.Path, "/") {
		return mapping{}, fmt.Errorf("mapping %q must start with /", m.Path)
	}

	raw := strings.TrimSuffix(m.Path, "/")
	if raw == "" {
		return mapping{raw: "/", index: true, node: m.Node}, nil
	}

	segs := strings.Split(strings.TrimPrefix(raw, "/"), "/")
	compiled := make([]patternSegment, 0, len(segs))
	for _, seg := range segs {
		if seg == "" {
			return mapping{}, fmt.Errorf("mapping %q has an empty segment", m.Path)
		}
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			if name == "" {
				return mapping{}, fmt.Errorf("mapping %q has an unnamed parameter", m.Path)
			}
			compiled = append(compiled, patternSegment{param: name})
			continue
		}
		compiled = append(compiled, patternSegment{literal: seg})
	}
	return mapping{raw: raw, segments: compiled, node: m.Node}, nil
}

// =============================================================================
// Page
// =============================================================================

// PageConfig configures a leaf content node.
type PageConfig struct {
	// Title is the document title for this page.
	Title string

	// Meta carries arbitrary page metadata (description, og tags, ...).
	Meta map[string]string

	// Content or GetContent supply the page body. GetContent wins when
	// both are set; it is invoked once per cache entry and may be slow.
	Content    any
	GetContent ContentFunc
}

type pageNode struct {
	title      string
	meta       map[string]string
	content    any
	getContent ContentFunc
}

// Page builds a leaf content node from cfg.
func Page(cfg PageConfig) Node {
	return &pageNode{
		title:      cfg.Title,
		meta:       cfg.Meta,
		content:    cfg.Content,
		getContent: cfg.GetContent,
	}
}

func (n *pageNode) Kind() Kind { return KindPage }

// =============================================================================
// Redirect
// =============================================================================

type redirectNode struct {
	target string
	fn     TargetFunc
}

// Redirect builds a leaf node that resolves to the given target URL.
// The router surfaces the target as data; it never follows it.
func Redirect(target string) Node {
	return &redirectNode{target: target}
}

// RedirectTo builds a redirect whose target is computed from the matched
// environment, e.g. to preserve query parameters.
func RedirectTo(fn TargetFunc) Node {
	return &redirectNode{fn: fn}
}

func (n *redirectNode) Kind() Kind { return KindRedirect }

// resolveTarget returns the redirect target for env.
func (n *redirectNode) resolveTarget(env Env) (string, error) {
	if n.fn != nil {
		return n.fn(env)
	}
	return n.target, nil
}

// =============================================================================
// Lazy
// =============================================================================

type lazyNode struct {
	load LoaderFunc

	mu      sync.Mutex
	settled bool
	node    Node
	err     error
	pending chan struct{}
}

// Lazy builds a deferred node. The loader runs at most once per settled
// outcome: concurrent resolutions share one invocation, the loaded node
// (or its error) is memoized, and a failure caused purely by the loading
// context's cancellation is retried on the next resolution.
func Lazy(load LoaderFunc) Node {
	return &lazyNode{load: load}
}

func (n *lazyNode) Kind() Kind { return KindLazy }

// resolve returns the concrete node, loading it on first use.
func (n *lazyNode) resolve(ctx context.Context) (Node, error) {
	for {
		n.mu.Lock()
		if n.settled {
			node, err := n.node, n.err
			n.mu.Unlock()
			return node, err
		}
		if n.pending != nil {
			ch := n.pending
			n.mu.Unlock()
			select {
			case <-ch:
				continue // re-check: settled, or retriable cancellation
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		ch := make(chan struct{})
		n.pending = ch
		n.mu.Unlock()

		node, err := n.safeLoad(ctx)

		n.mu.Lock()
		n.pending = nil
		// A loader failure that is just the loading context's cancellation
		// must not poison the node for future resolutions.
		if err == nil || ctx.Err() == nil || !isContextErr(err, ctx) {
			n.settled = true
			n.node = node
			n.err = err
		}
		n.mu.Unlock()
		close(ch)

		return node, err
	}
}

func (n *lazyNode) safeLoad(ctx context.Context) (node Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lazy node loader panicked: %v", rec)
		}
	}()
	node, err = n.load(ctx)
	if node == nil && err == nil {
		err = fmt.Errorf("lazy node loader returned nil")
	}
	return node, err
}

// concrete resolves lazy indirection until a non-lazy node remains.
func concrete(ctx context.Context, n Node) (Node, error) {
	for depth := 0; n.Kind() == KindLazy; depth++ {
		if depth >= maxLazyDepth {
			return nil, fmt.Errorf("lazy node nesting exceeds %d levels", maxLazyDepth)
		}
		loaded, err := n.(*lazyNode).resolve(ctx)
		if err != nil {
			return nil, err
		}
		n = loaded
	}
	return n, nil
}

const maxLazyDepth = 16
