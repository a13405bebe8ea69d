package router

import (
	"context"
	"errors"
	"fmt"
)

// ErrRouterRetired is returned when resolving against a router that has
// been superseded by a context change. Callers should resolve against the
// replacement router instead.
var ErrRouterRetired = errors.New("router: retired by a newer context")

// LoaderError wraps a failure from a user-supplied content loader, lazy
// node loader, or redirect target function. It is attached to the failing
// route and to RoutingState.Err; deeper segments are not resolved.
type LoaderError struct {
	// Path is the matched pathname whose loader failed.
	Path string

	// Err is the loader's error.
	Err error
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("router: loader for %s failed: %v", e.Path, e.Err)
}

func (e *LoaderError) Unwrap() error { return e.Err }

// isContextErr reports whether err is (or wraps) ctx's own cancellation.
func isContextErr(err error, ctx context.Context) bool {
	cerr := ctx.Err()
	return cerr != nil && errors.Is(err, cerr)
}
