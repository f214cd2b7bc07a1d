// Package hub provides the session directory for WebSocket clients.
package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
	"github.com/jaylordlagud2022/affiliate-portal/internal/logging"
)

// Directory errors.
var (
	ErrBufferFull        = errors.New("send buffer full")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrUnknownConnection = errors.New("unknown connection")
)

// DefaultSendBuffer is the per-connection outbound queue length.
const DefaultSendBuffer = 256

// Connection represents a single WebSocket connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	identity *domain.Identity // guarded by Hub.mu
	mu       sync.Mutex
}

// Hub maps live connections to the identities registered on them.
//
// A connection carries at most one identity. Several connections may carry
// the same email; lookups by email return the most recently registered one
// that is still live.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// byEmail lists live connection IDs per email, oldest registration first
	byEmail map[string][]string

	// profiles keeps the last identity registered per email, including
	// emails whose connections have all gone away
	profiles map[string]domain.Identity

	bufferSize int
	mu         sync.RWMutex
}

// NewHub creates a new Hub. A non-positive bufferSize uses DefaultSendBuffer.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Hub{
		connections: make(map[string]*Connection),
		byEmail:     make(map[string][]string),
		profiles:    make(map[string]domain.Identity),
		bufferSize:  bufferSize,
	}
}

// NewConnection wraps ws in a Connection with a fresh ID. It is not yet
// attached to the hub.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, h.bufferSize),
	}
}

// Attach adds an unregistered connection to the hub.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	total := len(h.connections)
	h.mu.Unlock()

	logging.Debug().Str("conn_id", conn.ID).Int("total_connections", total).Msg("connection attached")
}

// Register binds identity to the connection, replacing whatever that
// connection registered before. firstSeen reports whether the email had
// never been registered by any connection.
func (h *Hub) Register(connID string, identity domain.Identity) (firstSeen bool, err error) {
	if identity.Email == "" {
		return false, domain.ErrEmailRequired
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[connID]
	if !ok {
		return false, ErrUnknownConnection
	}

	if conn.identity != nil {
		h.unindexLocked(conn.identity.Email, connID)
	}
	id := identity
	conn.identity = &id
	h.byEmail[identity.Email] = append(h.byEmail[identity.Email], connID)

	_, known := h.profiles[identity.Email]
	h.profiles[identity.Email] = identity
	return !known, nil
}

// Unregister removes the connection and closes its send channel.
// It reports false for unknown or already removed IDs.
func (h *Hub) Unregister(connID string) bool {
	h.mu.Lock()
	conn, ok := h.connections[connID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.connections, connID)
	if conn.identity != nil {
		h.unindexLocked(conn.identity.Email, connID)
	}
	close(conn.Send)
	total := len(h.connections)
	h.mu.Unlock()

	logging.Debug().Str("conn_id", connID).Int("total_connections", total).Msg("connection detached")
	return true
}

func (h *Hub) unindexLocked(email, connID string) {
	ids := h.byEmail[email]
	for i, id := range ids {
		if id == connID {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(h.byEmail, email)
		return
	}
	h.byEmail[email] = ids
}

// FindConnectionByEmail returns the live connection most recently
// registered under email.
func (h *Hub) FindConnectionByEmail(email string) (*Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := h.byEmail[email]
	if len(ids) == 0 {
		return nil, false
	}
	conn, ok := h.connections[ids[len(ids)-1]]
	return conn, ok
}

// FindIdentityByEmail returns the last identity registered under email,
// whether or not it is still connected.
func (h *Hub) FindIdentityByEmail(email string) (domain.Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.profiles[email]
	return id, ok
}

// IdentityOf returns the identity registered on a connection.
func (h *Hub) IdentityOf(connID string) (domain.Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.connections[connID]
	if !ok || conn.identity == nil {
		return domain.Identity{}, false
	}
	return *conn.identity, true
}

// Deliver queues data on the connection without blocking.
func (h *Hub) Deliver(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Unregister closes Send under the write lock, so a registered
	// connection's channel is open for the duration of this read lock.
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// OnlineCount returns the number of emails with at least one live connection.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byEmail)
}

// IdentityCount returns the number of emails ever registered.
func (h *Hub) IdentityCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.profiles)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}
