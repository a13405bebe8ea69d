// Package history defines the location-history contract the navigation
// core collaborates with, plus an in-memory implementation.
//
// The core never stores locations itself: it pushes and replaces entries
// through a History and re-resolves when the History reports an external
// location change (back/forward, address bar). Browser-backed
// implementations live outside this module; Memory backs tests, servers,
// and static export.
package history

import (
	"errors"
	"fmt"

	"github.com/wayfind-go/wayfind/pkg/urls"
)

// Action describes how a location change entered the history.
type Action int

const (
	// ActionPush is a new entry appended by Push.
	ActionPush Action = iota

	// ActionReplace is the current entry being overwritten by Replace.
	ActionReplace

	// ActionPop is movement to an existing entry: Back, Forward, or an
	// external change such as the browser's back button.
	ActionPop
)

func (a Action) String() string {
	switch a {
	case ActionPush:
		return "push"
	case ActionReplace:
		return "replace"
	case ActionPop:
		return "pop"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ErrNoEntry is returned by Back and Forward when there is no entry to
// move to.
var ErrNoEntry = errors.New("history: no entry")

// History is the location store the navigation core drives.
//
// Implementations must invoke listeners after the location has changed,
// with the new location and the action that caused it. Listener callbacks
// must not be invoked while implementation locks are held.
type History interface {
	// Location returns the current location.
	Location() urls.Descriptor

	// Push appends a new entry and makes it current, discarding any
	// forward entries.
	Push(urls.Descriptor) error

	// Replace overwrites the current entry.
	Replace(urls.Descriptor) error

	// Back moves to the previous entry. Fails with ErrNoEntry at the
	// oldest entry.
	Back() error

	// Forward moves to the next entry. Fails with ErrNoEntry at the
	// newest entry.
	Forward() error

	// Listen registers fn for location changes and returns a cancel
	// function. The cancel function is idempotent.
	Listen(fn func(urls.Descriptor, Action)) (cancel func())
}
