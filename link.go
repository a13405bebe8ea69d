package wayfind

import (
	"context"
	"strings"

	"github.com/wayfind-go/wayfind/pkg/urls"
)

// LinkProps is everything a UI needs to render one navigation link: the
// normalized href, whether it points at (or above) the current location,
// and ready-to-wire navigate and prefetch callbacks.
type LinkProps struct {
	// Href is the normalized target.
	Href string

	// Active reports whether the current location matches the target:
	// exactly by default, or by path prefix with WithPrefixMatch.
	Active bool

	// Navigate performs the navigation, honoring the link's options.
	Navigate func(ctx context.Context) error

	// Prefetch primes the resolver cache for the target. Errors,
	// including ErrPrefetchLimited, are safe to ignore.
	Prefetch func(ctx context.Context) error
}

type linkConfig struct {
	prefix  bool
	replace bool
}

// LinkOption configures LinkProps.
type LinkOption func(*linkConfig)

// WithPrefixMatch marks the link active when the current pathname is the
// target or nested below it, the usual behavior for section navigation.
func WithPrefixMatch() LinkOption {
	return func(c *linkConfig) { c.prefix = true }
}

// WithLinkReplace makes the link's Navigate replace the current history
// entry instead of pushing.
func WithLinkReplace() LinkOption {
	return func(c *linkConfig) { c.replace = true }
}

// LinkProps builds link props for href, resolved against the current
// location.
func (n *Navigation) LinkProps(href string, opts ...LinkOption) (LinkProps, error) {
	var cfg linkConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	d, err := urls.Resolve(n.history.Location(), href)
	if err != nil {
		return LinkProps{}, err
	}

	var navOpts []NavigateOption
	if cfg.replace {
		navOpts = append(navOpts, WithReplace())
	}

	target := d.Href
	return LinkProps{
		Href:   target,
		Active: n.linkActive(d, cfg.prefix),
		Navigate: func(ctx context.Context) error {
			_, err := n.Navigate(ctx, target, navOpts...)
			return err
		},
		Prefetch: func(ctx context.Context) error {
			return n.Prefetch(ctx, target)
		},
	}, nil
}

func (n *Navigation) linkActive(d urls.Descriptor, prefix bool) bool {
	current := urls.StripTrailingSlash(n.Current().URL.Pathname)
	target := urls.StripTrailingSlash(d.Pathname)
	if current == target {
		return true
	}
	if !prefix {
		return false
	}
	if target == "/" {
		return true
	}
	return strings.HasPrefix(current, target+"/")
}
