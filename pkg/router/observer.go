package router

import (
	"context"
	"time"
)

// Observer receives resolution lifecycle events. Implementations must be
// safe for concurrent use; a Router fans every Resolve out to all of its
// observers in registration order.
//
// ResolveStarted may derive a new context (to carry a trace span, for
// example); the Router threads the returned context through the walk and
// into every loader, and hands it back to SegmentResolved and
// ResolveFinished. Return ctx unchanged when no derivation is needed.
type Observer interface {
	// ResolveStarted fires before the walk begins.
	ResolveStarted(ctx context.Context, href string, method Method) context.Context

	// SegmentResolved fires after each matched level settles, whether its
	// resolution succeeded or failed.
	SegmentResolved(ctx context.Context, pathname string, method Method, d time.Duration, err error)

	// ResolveFinished fires once per Resolve with the final state. It does
	// not fire when Resolve aborts without producing a state (bad input,
	// retired router, cancelled context).
	ResolveFinished(ctx context.Context, href string, method Method, d time.Duration, state RoutingState)
}

func (r *Router) observeStart(ctx context.Context, href string, method Method) context.Context {
	for _, o := range r.observers {
		ctx = o.ResolveStarted(ctx, href, method)
	}
	return ctx
}

func (r *Router) observeSegment(ctx context.Context, pathname string, method Method, d time.Duration, err error) {
	for _, o := range r.observers {
		o.SegmentResolved(ctx, pathname, method, d, err)
	}
}

func (r *Router) observeFinish(ctx context.Context, href string, method Method, d time.Duration, state RoutingState) {
	for _, o := range r.observers {
		o.ResolveFinished(ctx, href, method, d, state)
	}
}
