package relay

import (
	"log/slog"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/metrics"
)

// Router forwards signaling frames between registered connections.
//
// Routing is best-effort by design: a frame that cannot be delivered is
// dropped, never reported back to the sender. The application layer above
// (ring timeouts, push-notification fallback) owns failure recovery.
type Router struct {
	reg     *Registry
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewRouter(reg *Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		reg:     reg,
		log:     logger,
		metrics: reg.Metrics(),
	}
}

// Route validates frame and forwards it verbatim to the addressed
// connection.
//
// A malformed frame is dropped with a logged warning; malformed input is
// not fatal to the sending channel. A well-formed frame whose target is
// not a member of the addressed room, holds no live connection there, or
// cannot accept the frame without blocking is dropped silently.
//
// Route never blocks: Conn.Send only enqueues, so per-sender frame order
// is exactly the order Route is called from the sender's read loop.
func (rt *Router) Route(from *Conn, frame []byte) {
	env, err := ParseEnvelope(frame)
	if err != nil {
		rt.metrics.Inc(metrics.DropMalformed)
		rt.log.Warn("dropping malformed signaling frame",
			"user_id", from.UserID, "room_id", from.RoomID, "conn_id", from.ID,
			"err", err)
		return
	}

	// Membership is checked against the addressed room, not the key the
	// target registered under elsewhere: a user connected to a different
	// room must not receive frames addressed to this one.
	if !rt.reg.IsMember(env.RoomID, env.To) {
		rt.metrics.Inc(metrics.DropNotMember)
		return
	}

	target := rt.reg.Lookup(env.To, env.RoomID)
	if target == nil {
		rt.metrics.Inc(metrics.DropNoConnection)
		return
	}

	if err := target.Send(frame); err != nil {
		// Blocked or failing transport is equivalent to "target
		// unreachable": no retry, no queueing beyond the conn's own buffer.
		rt.metrics.Inc(metrics.DropSendFailed)
		rt.log.Debug("dropping undeliverable signaling frame",
			"type", string(env.Type), "to", env.To, "room_id", env.RoomID,
			"err", err)
		return
	}

	rt.metrics.Inc(metrics.FrameForwarded)
}
