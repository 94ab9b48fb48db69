package relay

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/metrics"
)

type peerKey struct {
	userID string
	roomID string
}

// Registry owns the mapping from (userId, roomId) to the single live
// connection for that identity, plus the per-room membership index derived
// from it.
//
// Both structures live behind one mutex so register+join and
// unregister+leave are each a single atomic step: no observer can ever see
// a connection without its membership entry or vice versa.
type Registry struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	conns map[peerKey]*Conn
	rooms map[string]map[string]struct{}
}

func NewRegistry(logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Registry{
		log:     logger,
		metrics: m,
		conns:   make(map[peerKey]*Conn),
		rooms:   make(map[string]map[string]struct{}),
	}
}

func (r *Registry) Metrics() *metrics.Metrics { return r.metrics }

// Register binds a new connection to (userID, roomID) and joins the room,
// as one atomic step. If a connection already exists for the key it is
// displaced (last-writer-wins) and its transport is kicked before Register
// returns, so the stale channel can never receive routed frames.
//
// Empty userID or roomID is refused; the caller must close the underlying
// transport with a policy-violation reason.
func (r *Registry) Register(userID, roomID string, h Handle) (*Conn, error) {
	if userID == "" || roomID == "" {
		return nil, ErrMissingIdentity
	}

	conn := newConn(userID, roomID, h)
	key := peerKey{userID: userID, roomID: roomID}

	r.mu.Lock()
	displaced := r.conns[key]
	r.conns[key] = conn
	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]struct{})
		r.rooms[roomID] = room
	}
	room[userID] = struct{}{}
	r.mu.Unlock()

	if displaced != nil {
		r.metrics.Inc(metrics.ConnReplaced)
		r.log.Info("connection superseded",
			"user_id", userID, "room_id", roomID,
			"old_conn_id", displaced.ID, "new_conn_id", conn.ID)
		displaced.Kick("connection superseded")
	}

	r.metrics.Inc(metrics.ConnOpened)
	return conn, nil
}

// Unregister removes conn from the registry and leaves the room as one
// atomic step. It is idempotent, and it is identity-aware: unregistering a
// connection that has already been displaced by a newer registration for
// the same key leaves the newer entry (and its membership) untouched.
func (r *Registry) Unregister(conn *Conn) {
	if conn == nil {
		return
	}
	key := peerKey{userID: conn.UserID, roomID: conn.RoomID}

	r.mu.Lock()
	current, ok := r.conns[key]
	if !ok || current != conn {
		r.mu.Unlock()
		return
	}
	delete(r.conns, key)
	if room := r.rooms[conn.RoomID]; room != nil {
		delete(room, conn.UserID)
		if len(room) == 0 {
			delete(r.rooms, conn.RoomID)
		}
	}
	r.mu.Unlock()

	r.metrics.Inc(metrics.ConnClosed)
}

// Lookup returns the live connection for (userID, roomID), or nil. Pure
// read, no side effects.
func (r *Registry) Lookup(userID, roomID string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[peerKey{userID: userID, roomID: roomID}]
}

// IsMember reports whether userID is a currently connected member of
// roomID.
func (r *Registry) IsMember(roomID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID][userID]
	return ok
}

// Members returns a sorted snapshot of the user ids currently connected to
// roomID.
func (r *Registry) Members(roomID string) []string {
	r.mu.Lock()
	room := r.rooms[roomID]
	out := make([]string, 0, len(room))
	for userID := range room {
		out = append(out, userID)
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}

func (r *Registry) ActiveConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) ActiveRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Close kicks every live connection. Used at shutdown; each connection's
// read loop then runs the normal unregister path.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Kick("server shutting down")
	}
}
