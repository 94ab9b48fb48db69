package relay

import "errors"

var (
	// ErrMissingIdentity is returned by Register when userID or roomID is
	// empty. The caller must close the underlying transport with a
	// policy-violation reason; the connection is never registered.
	ErrMissingIdentity = errors.New("missing userId/roomId")

	// ErrSendQueueFull is returned by Conn.Send when the outbound queue is
	// full. The router treats it like any other unreachable target.
	ErrSendQueueFull = errors.New("send queue full")

	ErrConnClosed = errors.New("connection closed")
)
