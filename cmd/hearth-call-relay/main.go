package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/config"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/httpserver"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/metrics"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/notify"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/relay"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/signaling"
	"github.com/hearthlink/hearthlink/services/call-relay/internal/turnrest"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	logger.Info("starting hearth-call-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"auth_mode", cfg.AuthMode,
		"ws_idle_timeout", cfg.WSIdleTimeout,
		"ws_ping_interval", cfg.WSPingInterval,
		"max_signaling_message_bytes", cfg.MaxMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxMessagesPerSecond,
		"send_queue_frames", cfg.SendQueueFrames,
		"ice_servers", len(cfg.ICEServers),
		"turn_rest_enabled", cfg.TURNRESTEnabled(),
		"push_gateway_configured", cfg.PushGatewayURL != "",
	)

	logStartupSecurityWarnings(logger, cfg)

	authorizer, err := signaling.NewAuthorizer(cfg)
	if err != nil {
		logger.Error("failed to configure signaling auth", "err", err)
		os.Exit(2)
	}

	var minter *turnrest.Minter
	if cfg.TURNRESTEnabled() {
		minter, err = turnrest.NewMinter(turnrest.Config{
			SharedSecret: cfg.TURNRESTSharedSecret,
			TTLSeconds:   cfg.TURNRESTTTLSeconds,
			Prefix:       cfg.TURNRESTUsernamePrefix,
		})
		if err != nil {
			logger.Error("failed to configure turn rest credentials", "err", err)
			os.Exit(2)
		}
	}

	var dispatcher notify.Dispatcher
	if cfg.PushGatewayURL != "" {
		dispatcher = notify.NewHTTPDispatcher(cfg.PushGatewayURL, cfg.PushGatewayToken, cfg.PushTimeout)
	}

	m := metrics.New()
	registry := relay.NewRegistry(logger, m)
	sig := signaling.NewServer(cfg, logger, registry, authorizer)

	commit, built := resolveBuildInfo(buildCommit, buildTime)
	srv := httpserver.New(httpserver.Options{
		Config:     cfg,
		Logger:     logger,
		Build:      httpserver.BuildInfo{Commit: commit, BuildTime: built},
		Registry:   registry,
		Metrics:    m,
		Signal:     sig,
		Authorizer: authorizer,
		Notifier:   dispatcher,
		TURNMinter: minter,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, httpserver.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		// Shutdown does not touch hijacked WebSocket connections; kick them
		// so their read loops unwind and deregister.
		registry.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, built string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to
	// the Go build info for `go run` / dev builds.
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if built == "" {
					built = s.Value
				}
			}
		}
	}
	return commit, built
}
