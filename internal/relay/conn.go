package relay

import (
	"time"

	"github.com/google/uuid"
)

// Handle is the transport side of a registered connection.
//
// Send must never block: implementations enqueue the frame on a bounded
// outbound queue and return ErrSendQueueFull when the peer cannot keep up.
// Kick force-closes the underlying transport; it is used when a newer
// registration for the same (userId, roomId) displaces this one.
type Handle interface {
	Send(frame []byte) error
	Kick(reason string)
}

// Conn is one live duplex channel for one participant. It is exclusively
// owned by the Registry entry keyed by (UserID, RoomID); no other component
// holds a long-lived reference to it.
type Conn struct {
	// ID is a random identifier used only for log correlation.
	ID string

	UserID string
	RoomID string

	ConnectedAt time.Time

	handle Handle
}

func newConn(userID, roomID string, h Handle) *Conn {
	return &Conn{
		ID:          uuid.NewString(),
		UserID:      userID,
		RoomID:      roomID,
		ConnectedAt: time.Now(),
		handle:      h,
	}
}

// Send enqueues a frame for delivery to this connection's peer. It never
// blocks; a full queue or a closed transport surfaces as an error that the
// router treats as "target unreachable".
func (c *Conn) Send(frame []byte) error {
	return c.handle.Send(frame)
}

// Kick force-closes the underlying transport. The connection's own read
// loop observes the close and runs the normal teardown path.
func (c *Conn) Kick(reason string) {
	c.handle.Kick(reason)
}
