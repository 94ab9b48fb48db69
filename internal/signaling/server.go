package signaling

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/config"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/metrics"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/origin"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/ratelimit"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/relay"
)

// Server serves GET /rtc/signal: it upgrades the connection, validates the
// identity handshake, registers the connection with the relay core, and
// pumps inbound frames into the router until the channel closes.
//
// Connection lifecycle: Connecting (handshake in progress) -> Active
// (registered, routable) -> Closed. A reconnect is a brand-new connection,
// never a resurrection of a closed one.
type Server struct {
	cfg        config.Config
	log        *slog.Logger
	registry   *relay.Registry
	router     *relay.Router
	authorizer Authorizer
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader
}

func NewServer(cfg config.Config, logger *slog.Logger, registry *relay.Registry, authorizer Authorizer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if authorizer == nil {
		authorizer = AllowAllAuthorizer{}
	}
	return &Server{
		cfg:        cfg,
		log:        logger,
		registry:   registry,
		router:     relay.NewRouter(registry, logger),
		authorizer: authorizer,
		metrics:    registry.Metrics(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				header := strings.TrimSpace(r.Header.Get("Origin"))
				if header == "" {
					return true
				}
				_, ok := origin.Check(header, r.Host, cfg.AllowedOrigins)
				return ok
			},
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.authorizer.Authorize(r); err != nil {
		s.metrics.Inc(metrics.AuthFailure)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		return
	}

	// Identity handshake. Missing identity is a protocol violation: close
	// immediately, never register.
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("userId"))
	roomID := strings.TrimSpace(query.Get("roomId"))
	if userID == "" || roomID == "" {
		s.metrics.Inc(metrics.HandshakeRejected)
		s.log.Warn("rejecting signaling handshake", "remote", r.RemoteAddr, "err", relay.ErrMissingIdentity)
		writeClose(conn, websocket.ClosePolicyViolation, "missing userId/roomId")
		_ = conn.Close()
		return
	}

	wsc := newWSConn(conn, s.cfg.SendQueueFrames, s.cfg.WSPingInterval)

	reg, err := s.registry.Register(userID, roomID, wsc)
	if err != nil {
		s.metrics.Inc(metrics.HandshakeRejected)
		writeClose(conn, websocket.ClosePolicyViolation, err.Error())
		wsc.close()
		return
	}

	s.log.Info("signaling connection active",
		"user_id", userID, "room_id", roomID, "conn_id", reg.ID, "remote", r.RemoteAddr)

	s.readLoop(reg, wsc)

	// Active -> Closed: unregister+leave as one atomic step, then discard
	// the handle. Read errors, graceful closes and idle timeouts all land
	// here; there is no path back to Active.
	s.registry.Unregister(reg)
	wsc.close()

	s.log.Info("signaling connection closed",
		"user_id", userID, "room_id", roomID, "conn_id", reg.ID,
		"connected_for", time.Since(reg.ConnectedAt).Round(time.Millisecond))
}

func (s *Server) readLoop(reg *relay.Conn, wsc *wsConn) {
	conn := wsc.conn
	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))
	})

	limiter := ratelimit.NewBucket(nil,
		int64(s.cfg.MaxMessagesPerSecond), int64(s.cfg.MaxMessagesPerSecond))

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			// Graceful close, transport error and idle timeout are all the
			// same terminal transition.
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.WSIdleTimeout))

		// Limit after reading so bytes already buffered by the kernel are
		// consumed; closing with unread data can turn into an RST that
		// hides the close code from the client.
		if !limiter.Allow() {
			s.metrics.Inc(metrics.DropRateLimited)
			writeClose(conn, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}

		s.router.Route(reg, frame)
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}
