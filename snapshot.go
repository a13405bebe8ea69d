package wayfind

import (
	"github.com/wayfind-go/wayfind/pkg/history"
	"github.com/wayfind-go/wayfind/pkg/router"
)

// Snapshot is a coherent view of the navigation for one render pass: the
// state and the router that produced it, captured together so a context
// rotation between reads cannot hand the renderer mismatched halves.
type Snapshot struct {
	// State is the current routing state.
	State *router.RoutingState

	// History is the session history, for back/forward affordances.
	History history.History

	// Router resolved State and serves LinkProps-style lookups until the
	// next snapshot.
	Router *router.Router

	// Rendered acknowledges that this snapshot reached the screen; the
	// navigation counts acknowledgements in Stats.
	Rendered func()
}

// Snapshot captures the current state and router atomically.
func (n *Navigation) Snapshot() Snapshot {
	n.mu.Lock()
	state, rtr := n.current, n.rtr
	n.mu.Unlock()

	return Snapshot{
		State:    state,
		History:  n.history,
		Router:   rtr,
		Rendered: func() { n.rendersAcked.Add(1) },
	}
}
