package signaling

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/relay"
)

const wsWriteWait = 1 * time.Second

// wsConn adapts a gorilla websocket connection to the relay.Handle
// contract: Send never blocks, it only enqueues onto a bounded queue that
// a dedicated writer goroutine drains in order.
type wsConn struct {
	conn *websocket.Conn

	out          chan []byte
	pingInterval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func newWSConn(conn *websocket.Conn, queueFrames int, pingInterval time.Duration) *wsConn {
	c := &wsConn{
		conn:         conn,
		out:          make(chan []byte, queueFrames),
		pingInterval: pingInterval,
		done:         make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send enqueues one frame for in-order delivery. A full queue means the
// peer is not draining; the frame is dropped rather than blocking the
// router.
func (c *wsConn) Send(frame []byte) error {
	select {
	case <-c.done:
		return relay.ErrConnClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return relay.ErrSendQueueFull
	}
}

// Kick force-closes the transport with a policy-violation close frame. The
// connection's read loop observes the close and runs normal teardown.
func (c *wsConn) Kick(reason string) {
	// WriteControl is safe to call concurrently with the writer goroutine.
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(wsWriteWait))
	c.close()
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
