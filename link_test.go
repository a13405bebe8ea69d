package wayfind

import (
	"context"
	"errors"
	"testing"

	"github.com/wayfind-go/wayfind/pkg/history"
	"github.com/wayfind-go/wayfind/pkg/urls"
)

func TestLinkPropsActive(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	if _, err := nav.Navigate(context.Background(), "/posts/hello"); err != nil {
		t.Fatalf("Navigate error: %v", err)
	}

	tests := []struct {
		name   string
		href   string
		opts   []LinkOption
		active bool
	}{
		{"exact match", "/posts/hello", nil, true},
		{"exact match trailing slash", "/posts/hello/", nil, true},
		{"parent not active by default", "/posts", nil, false},
		{"parent active with prefix match", "/posts", []LinkOption{WithPrefixMatch()}, true},
		{"root not active exactly", "/", nil, false},
		{"root always active with prefix match", "/", []LinkOption{WithPrefixMatch()}, true},
		{"sibling not active", "/fast", nil, false},
		{"sibling not active with prefix match", "/fast", []LinkOption{WithPrefixMatch()}, false},
		{"prefix is per segment", "/posts/hell", []LinkOption{WithPrefixMatch()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, err := nav.LinkProps(tt.href, tt.opts...)
			if err != nil {
				t.Fatalf("LinkProps(%q) error: %v", tt.href, err)
			}
			if props.Active != tt.active {
				t.Errorf("LinkProps(%q).Active = %v, want %v", tt.href, props.Active, tt.active)
			}
		})
	}
}

func TestLinkPropsResolvesRelativeHref(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	if _, err := nav.Navigate(context.Background(), "/posts/hello"); err != nil {
		t.Fatalf("Navigate error: %v", err)
	}

	props, err := nav.LinkProps("?page=2")
	if err != nil {
		t.Fatalf("LinkProps error: %v", err)
	}
	if props.Href != "/posts/hello?page=2" {
		t.Fatalf("Href = %q, want /posts/hello?page=2", props.Href)
	}
}

func TestLinkPropsNavigate(t *testing.T) {
	site := newTestSite()
	hist := history.NewMemory("/")
	nav := newTestNav(t, Config{Routes: site.tree(), History: hist})
	steady(t, nav)

	props, err := nav.LinkProps("/fast")
	if err != nil {
		t.Fatalf("LinkProps error: %v", err)
	}
	if err := props.Navigate(context.Background()); err != nil {
		t.Fatalf("props.Navigate error: %v", err)
	}
	if got := hist.Location().Pathname; got != "/fast" {
		t.Fatalf("location = %q, want /fast", got)
	}
	if got := hist.Len(); got != 2 {
		t.Fatalf("history Len = %d, want 2", got)
	}

	// Replace links keep the stack flat.
	props, err = nav.LinkProps("/posts/hello", WithLinkReplace())
	if err != nil {
		t.Fatalf("LinkProps error: %v", err)
	}
	if err := props.Navigate(context.Background()); err != nil {
		t.Fatalf("props.Navigate error: %v", err)
	}
	if got := hist.Len(); got != 2 {
		t.Fatalf("history Len after replace link = %d, want 2", got)
	}
	if got := hist.Location().Pathname; got != "/posts/hello" {
		t.Fatalf("location = %q, want /posts/hello", got)
	}
}

func TestLinkPropsPrefetch(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	props, err := nav.LinkProps("/posts/hello")
	if err != nil {
		t.Fatalf("LinkProps error: %v", err)
	}
	if err := props.Prefetch(context.Background()); err != nil {
		t.Fatalf("props.Prefetch error: %v", err)
	}
	if got := site.loads["/posts/hello"].Load(); got != 1 {
		t.Fatalf("loads = %d, want 1", got)
	}
	// Prefetching a link does not move the session.
	if got := nav.History().Location().Pathname; got != "/" {
		t.Fatalf("location = %q, want /", got)
	}
}

func TestLinkPropsInvalidHref(t *testing.T) {
	site := newTestSite()
	nav := newTestNav(t, Config{Routes: site.tree()})
	steady(t, nav)

	if _, err := nav.LinkProps("https://example.com/"); !errors.Is(err, urls.ErrInvalidURL) {
		t.Fatalf("LinkProps error = %v, want ErrInvalidURL", err)
	}
}
