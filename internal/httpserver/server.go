// Package httpserver wires the relay's HTTP surface: health and readiness
// probes, build info, metrics, ICE configuration, the missed-call fallback
// endpoint, and the WebSocket signaling route.
package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/config"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/metrics"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/notify"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/relay"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/signaling"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/turnrest"
)

var ErrServerClosed = http.ErrServerClosed

type BuildInfo struct {
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

type Options struct {
	Config config.Config
	Logger *slog.Logger
	Build  BuildInfo

	Registry *relay.Registry
	Metrics  *metrics.Metrics

	// Signal handles GET /rtc/signal (the WebSocket signaling surface).
	Signal http.Handler

	// Authorizer gates POST /calls/missed the same way the signaling
	// surface is gated.
	Authorizer signaling.Authorizer

	// Notifier is the outbound push-notification collaborator. Nil means
	// the endpoint reports the fallback as unconfigured.
	Notifier notify.Dispatcher

	// TURNMinter mints ephemeral TURN credentials for /rtc/ice. Nil when
	// TURN REST is not configured.
	TURNMinter *turnrest.Minter
}

type Server struct {
	log  *slog.Logger
	cfg  config.Config
	opts Options

	ready atomic.Bool

	mux *http.ServeMux
	srv *http.Server
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Authorizer == nil {
		opts.Authorizer = signaling.AllowAllAuthorizer{}
	}
	s := &Server{
		log:  logger,
		cfg:  opts.Config,
		opts: opts,
		mux:  http.NewServeMux(),
	}

	s.registerRoutes()

	handler := chain(s.mux,
		recoverMiddleware(s.log),
		requestIDMiddleware(),
		requestLoggerMiddleware(s.log),
	)

	s.srv = &http.Server{
		Addr:              opts.Config.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Other timeouts stay zero: /rtc/signal holds long-lived upgraded
		// connections.
	}

	return s
}

func (s *Server) Serve(l net.Listener) error {
	s.ready.Store(true)
	s.log.Info("http server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.ready.Store(false)
	return s.srv.Close()
}

// Handler returns the fully wired handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	s.mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
		body := map[string]any{"ready": true}
		if s.opts.Registry != nil {
			body["connections"] = s.opts.Registry.ActiveConnections()
			body["rooms"] = s.opts.Registry.ActiveRooms()
		}
		WriteJSON(w, http.StatusOK, body)
	})

	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, s.opts.Build)
	})

	s.mux.Handle("GET /metrics", metrics.PrometheusHandler(s.opts.Metrics))

	s.mux.HandleFunc("GET /rtc/ice", s.withOriginPolicy(s.handleICEConfig))
	s.mux.HandleFunc("POST /calls/missed", s.withOriginPolicy(s.handleMissedCall))

	// Method-scoped patterns never match OPTIONS, so preflights need their
	// own route into the origin policy.
	preflight := s.withOriginPolicy(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.mux.HandleFunc("OPTIONS /rtc/ice", preflight)
	s.mux.HandleFunc("OPTIONS /calls/missed", preflight)

	if s.opts.Signal != nil {
		s.mux.Handle("GET /rtc/signal", s.opts.Signal)
	}
}

// handleICEConfig serves the ICE server list clients need to construct
// RTCPeerConnections. When TURN REST is configured, TURN entries carry
// freshly minted ephemeral credentials.
func (s *Server) handleICEConfig(w http.ResponseWriter, r *http.Request) {
	servers := s.cfg.ICEServers
	if s.opts.TURNMinter != nil {
		creds, err := s.opts.TURNMinter.Mint(uuid.NewString())
		if err != nil {
			s.log.Error("failed to mint turn credentials", "err", err)
			WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
			return
		}
		servers = withTURNCredentials(servers, creds.Username, creds.Credential)
		WriteJSON(w, http.StatusOK, map[string]any{
			"iceServers": servers,
			"ttl":        creds.ExpiryUnix - time.Now().UTC().Unix(),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"iceServers": servers})
}

// handleMissedCall forwards a missed-call notification to the external
// push gateway. Callers invoke it after their own ring timeout decides an
// invite went unanswered; the relay's routing path never does.
func (s *Server) handleMissedCall(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Authorizer.Authorize(r); err != nil {
		if s.opts.Metrics != nil {
			s.opts.Metrics.Inc(metrics.AuthFailure)
		}
		WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	if s.opts.Notifier == nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "push gateway not configured"})
		return
	}

	var mc notify.MissedCall
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&mc); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
		return
	}
	if err := mc.Validate(); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	if err := s.opts.Notifier.Dispatch(r.Context(), mc); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Warn("missed-call dispatch failed",
			"room_id", mc.RoomID, "recipient_id", mc.RecipientID, "err", err)
		WriteJSON(w, http.StatusBadGateway, map[string]any{"error": "dispatch failed"})
		return
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.Inc(metrics.MissedCallNotified)
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

type Middleware func(http.Handler) http.Handler

func chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func recoverMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in http handler", "recover", rec, "stack", string(debug.Stack()))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				var buf [16]byte
				if _, err := rand.Read(buf[:]); err == nil {
					reqID = hex.EncodeToString(buf[:])
				}
			}
			if reqID != "" {
				r.Header.Set("X-Request-ID", reqID)
				w.Header().Set("X-Request-ID", reqID)
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func requestLoggerMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip wrapping for the WebSocket route: the hijacked connection
			// outlives the request and a wrapped writer breaks the upgrade.
			if r.URL.Path == "/rtc/signal" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", r.Header.Get("X-Request-ID"),
			)
		})
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
