// Package inspect streams routing states over WebSocket, so devtools and
// debugging UIs can watch a navigation live: every emitted state becomes
// one JSON frame, and new connections immediately receive the latest
// frame.
//
// Mount the handler wherever the app serves HTTP:
//
//	ins := inspect.New()
//	defer ins.Close()
//	ins.Attach(nav)
//	mux.Handle("/_wayfind/inspect", ins)
package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wayfind-go/wayfind"
	"github.com/wayfind-go/wayfind/pkg/router"
)

// MessageType classifies an inspector frame.
type MessageType string

const (
	// TypeState is a busy (partial) routing state.
	TypeState MessageType = "state"

	// TypeSteady is a settled routing state.
	TypeSteady MessageType = "steady"

	// TypeError is a settled state whose resolution failed.
	TypeError MessageType = "error"
)

// Message is one inspector frame.
type Message struct {
	Type   MessageType `json:"type"`
	URL    string      `json:"url"`
	Steady bool        `json:"steady"`
	Routes []RouteInfo `json:"routes"`
	Error  string      `json:"error,omitempty"`
}

// RouteInfo is the wire form of one route chain level.
type RouteInfo struct {
	Type   string            `json:"type"`
	URL    string            `json:"url"`
	Title  string            `json:"title,omitempty"`
	To     string            `json:"to,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Inspector fans routing states out to WebSocket clients. It implements
// http.Handler for the upgrade endpoint.
type Inspector struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// writeMu serializes frame writes across all clients; gorilla
	// connections do not support concurrent writers.
	writeMu sync.Mutex

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	last    []byte // latest frame, replayed to new clients
	closed  bool
	detach  func()
}

var _ http.Handler = (*Inspector)(nil)

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(i *Inspector) { i.logger = l }
}

// New builds an Inspector.
func New(opts ...Option) *Inspector {
	i := &Inspector{
		logger:  slog.Default(),
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // debugging endpoint, same-host dev use
			},
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Attach subscribes to nav and publishes every state it emits. Attach
// detaches any previous navigation. The subscription ends when either the
// navigation or the inspector closes.
func (i *Inspector) Attach(nav *wayfind.Navigation) {
	sub := nav.Subscribe()

	i.mu.Lock()
	if i.detach != nil {
		i.detach()
	}
	i.detach = sub.Cancel
	i.mu.Unlock()

	go func() {
		for state := range sub.States() {
			i.Publish(state)
		}
	}()
}

// Publish broadcasts state to all clients and stores it for replay.
func (i *Inspector) Publish(state *router.RoutingState) {
	data, err := json.Marshal(messageFor(state))
	if err != nil {
		i.logger.Warn("inspect: marshal failed", "err", err)
		return
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.last = data
	clients := make([]*websocket.Conn, 0, len(i.clients))
	for client := range i.clients {
		clients = append(clients, client)
	}
	i.mu.Unlock()

	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	for _, client := range clients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			i.mu.Lock()
			delete(i.clients, client)
			i.mu.Unlock()
			client.Close()
		}
	}
}

// ServeHTTP upgrades the connection, replays the latest frame, and keeps
// the client registered until it disconnects.
func (i *Inspector) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := i.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	if !i.register(conn) {
		conn.Close()
		return
	}

	// Drain the connection until the client goes away. Inspector clients
	// never send anything meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	i.mu.Lock()
	delete(i.clients, conn)
	i.mu.Unlock()
	conn.Close()
}

// register adds conn and replays the latest frame. Registration and the
// replay write happen under the write lock, so a concurrent Publish can
// neither interleave with the replay nor deliver frames out of order.
func (i *Inspector) register(conn *websocket.Conn) bool {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return false
	}
	i.clients[conn] = true
	last := i.last
	i.mu.Unlock()

	if last == nil {
		return true
	}
	if err := conn.WriteMessage(websocket.TextMessage, last); err != nil {
		i.mu.Lock()
		delete(i.clients, conn)
		i.mu.Unlock()
		return false
	}
	return true
}

// ClientCount returns the number of connected clients.
func (i *Inspector) ClientCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.clients)
}

// Close detaches from the navigation and closes all client connections.
func (i *Inspector) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	detach := i.detach
	i.detach = nil
	for client := range i.clients {
		client.Close()
		delete(i.clients, client)
	}
	i.mu.Unlock()

	if detach != nil {
		detach()
	}
}

func messageFor(state *router.RoutingState) Message {
	msg := Message{
		Type:   TypeState,
		URL:    state.URL.Href,
		Steady: state.Steady,
		Routes: make([]RouteInfo, 0, len(state.Routes)),
	}
	if state.Steady {
		msg.Type = TypeSteady
	}
	if state.Err != nil {
		msg.Type = TypeError
		msg.Error = state.Err.Error()
	}
	for _, r := range state.Routes {
		info := RouteInfo{
			Type:   r.Type.String(),
			URL:    r.URL.Href,
			Title:  r.Title,
			To:     r.To,
			Params: r.Params,
		}
		msg.Routes = append(msg.Routes, info)
	}
	return msg
}
