package history

import (
	"sync"

	"github.com/wayfind-go/wayfind/pkg/urls"
)

// Memory is an in-memory History: a stack of entries and an index into
// it. Safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	stack     []urls.Descriptor
	index     int
	listeners map[uint64]func(urls.Descriptor, Action)
	nextID    uint64
}

var _ History = (*Memory)(nil)

// NewMemory creates a Memory positioned at initial. It panics when
// initial is not a valid URL; use "/" for an empty history.
func NewMemory(initial string) *Memory {
	return &Memory{
		stack:     []urls.Descriptor{urls.MustParse(initial)},
		listeners: make(map[uint64]func(urls.Descriptor, Action)),
	}
}

// Location returns the current entry.
func (m *Memory) Location() urls.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stack[m.index]
}

// Push appends d after the current entry, discarding forward entries.
func (m *Memory) Push(d urls.Descriptor) error {
	m.mu.Lock()
	m.stack = append(m.stack[:m.index+1], d)
	m.index = len(m.stack) - 1
	fns := m.listenersLocked()
	m.mu.Unlock()

	notify(fns, d, ActionPush)
	return nil
}

// Replace overwrites the current entry with d.
func (m *Memory) Replace(d urls.Descriptor) error {
	m.mu.Lock()
	m.stack[m.index] = d
	fns := m.listenersLocked()
	m.mu.Unlock()

	notify(fns, d, ActionReplace)
	return nil
}

// Back moves to the previous entry.
func (m *Memory) Back() error {
	m.mu.Lock()
	if m.index == 0 {
		m.mu.Unlock()
		return ErrNoEntry
	}
	m.index--
	d := m.stack[m.index]
	fns := m.listenersLocked()
	m.mu.Unlock()

	notify(fns, d, ActionPop)
	return nil
}

// Forward moves to the next entry.
func (m *Memory) Forward() error {
	m.mu.Lock()
	if m.index >= len(m.stack)-1 {
		m.mu.Unlock()
		return ErrNoEntry
	}
	m.index++
	d := m.stack[m.index]
	fns := m.listenersLocked()
	m.mu.Unlock()

	notify(fns, d, ActionPop)
	return nil
}

// Listen registers fn for location changes.
func (m *Memory) Listen(fn func(urls.Descriptor, Action)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Len returns the number of entries in the stack.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// listenersLocked snapshots the listener set; callers notify after
// unlocking.
func (m *Memory) listenersLocked() []func(urls.Descriptor, Action) {
	fns := make([]func(urls.Descriptor, Action), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(urls.Descriptor, Action), d urls.Descriptor, a Action) {
	for _, fn := range fns {
		fn(d, a)
	}
}
