// Package metrics provides a minimal, concurrency-safe counter registry
// for relay events, exposed via Prometheus text exposition.
package metrics

import "sync"

// Event names. Dropped frames are counted by reason so best-effort routing
// stays observable even though no error ever goes back over the wire.
const (
	ConnOpened   = "conn_opened"
	ConnClosed   = "conn_closed"
	ConnReplaced = "conn_replaced"

	FrameForwarded = "frame_forwarded"

	DropMalformed    = "drop_malformed"
	DropNotMember    = "drop_not_member"
	DropNoConnection = "drop_no_connection"
	DropSendFailed   = "drop_send_failed"
	DropRateLimited  = "drop_rate_limited"

	HandshakeRejected = "handshake_rejected"
	AuthFailure       = "auth_failure"

	MissedCallNotified = "missed_call_notified"
)

type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{m: make(map[string]uint64)}
}

func (m *Metrics) Inc(name string) {
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
