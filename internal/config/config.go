// Package config loads the relay's runtime configuration from flags and
// environment variables.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	envListenAddr      = "HEARTH_CALL_RELAY_LISTEN_ADDR"
	envMode            = "HEARTH_CALL_RELAY_MODE"
	envLogFormat       = "HEARTH_CALL_RELAY_LOG_FORMAT"
	envLogLevel        = "HEARTH_CALL_RELAY_LOG_LEVEL"
	envShutdownTimeout = "HEARTH_CALL_RELAY_SHUTDOWN_TIMEOUT"

	envAllowedOrigins = "ALLOWED_ORIGINS"

	// Signaling channel hardening.
	envAuthMode             = "AUTH_MODE"
	envAPIKey               = "API_KEY"
	envWSIdleTimeout        = "SIGNALING_WS_IDLE_TIMEOUT"
	envWSPingInterval       = "SIGNALING_WS_PING_INTERVAL"
	envMaxMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envMaxMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envSendQueueFrames      = "SEND_QUEUE_FRAMES"

	// coturn TURN REST (ephemeral) credentials served at /rtc/ice.
	envTURNRESTSharedSecret   = "TURN_REST_SHARED_SECRET"
	envTURNRESTTTLSeconds     = "TURN_REST_TTL_SECONDS"
	envTURNRESTUsernamePrefix = "TURN_REST_USERNAME_PREFIX"

	// Outbound push-notification collaborator for the missed-call fallback.
	envPushGatewayURL   = "PUSH_GATEWAY_URL"
	envPushGatewayToken = "PUSH_GATEWAY_TOKEN"
	envPushTimeout      = "PUSH_TIMEOUT"
)

const (
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultWSIdleTimeout        = 60 * time.Second
	DefaultWSPingInterval       = 20 * time.Second
	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 50
	DefaultSendQueueFrames      = 32

	DefaultTURNRESTTTLSeconds     int64 = 3600
	DefaultTURNRESTUsernamePrefix       = "hearth"

	DefaultPushTimeout = 5 * time.Second
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeAPIKey AuthMode = "api_key"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	AllowedOrigins []string

	AuthMode AuthMode
	APIKey   string

	WSIdleTimeout        time.Duration
	WSPingInterval       time.Duration
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	SendQueueFrames      int

	ICEServers []webrtc.ICEServer

	TURNRESTSharedSecret   string
	TURNRESTTTLSeconds     int64
	TURNRESTUsernamePrefix string

	PushGatewayURL   string
	PushGatewayToken string
	PushTimeout      time.Duration
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("hearth-call-relay", flag.ContinueOnError)
	listenFlag := fs.String("listen", "", "listen address (overrides "+envListenAddr+")")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	cfg.ListenAddr = envOrDefault(lookup, envListenAddr, DefaultListenAddr)
	if *listenFlag != "" {
		cfg.ListenAddr = *listenFlag
	}

	mode, err := parseMode(envOrDefault(lookup, envMode, string(ModeDev)))
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = mode

	format, err := parseLogFormat(envOrDefault(lookup, envLogFormat, defaultLogFormat(mode)))
	if err != nil {
		return Config{}, err
	}
	cfg.LogFormat = format

	level, err := parseLogLevel(envOrDefault(lookup, envLogLevel, defaultLogLevel(mode)))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	cfg.ShutdownTimeout, err = envDurationOrDefault(lookup, envShutdownTimeout, DefaultShutdownTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg.AllowedOrigins, err = parseAllowedOrigins(envOrDefault(lookup, envAllowedOrigins, ""))
	if err != nil {
		return Config{}, err
	}

	authMode, err := parseAuthMode(envOrDefault(lookup, envAuthMode, string(AuthModeNone)))
	if err != nil {
		return Config{}, err
	}
	cfg.AuthMode = authMode
	cfg.APIKey = envOrDefault(lookup, envAPIKey, "")
	if cfg.AuthMode == AuthModeAPIKey && cfg.APIKey == "" {
		return Config{}, fmt.Errorf("%s=api_key requires %s", envAuthMode, envAPIKey)
	}

	cfg.WSIdleTimeout, err = envDurationOrDefault(lookup, envWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WSPingInterval, err = envDurationOrDefault(lookup, envWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	if cfg.WSPingInterval >= cfg.WSIdleTimeout {
		return Config{}, fmt.Errorf("%s must be shorter than %s", envWSPingInterval, envWSIdleTimeout)
	}

	maxBytes, err := envIntOrDefault(lookup, envMaxMessageBytes, int(DefaultMaxMessageBytes))
	if err != nil {
		return Config{}, err
	}
	if maxBytes <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0", envMaxMessageBytes)
	}
	cfg.MaxMessageBytes = int64(maxBytes)

	cfg.MaxMessagesPerSecond, err = envIntOrDefault(lookup, envMaxMessagesPerSecond, DefaultMaxMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	if cfg.MaxMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0", envMaxMessagesPerSecond)
	}

	cfg.SendQueueFrames, err = envIntOrDefault(lookup, envSendQueueFrames, DefaultSendQueueFrames)
	if err != nil {
		return Config{}, err
	}
	if cfg.SendQueueFrames <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0", envSendQueueFrames)
	}

	cfg.ICEServers, err = parseICEServersFromEnv(lookup)
	if err != nil {
		return Config{}, err
	}

	cfg.TURNRESTSharedSecret = envOrDefault(lookup, envTURNRESTSharedSecret, "")
	ttl, err := envIntOrDefault(lookup, envTURNRESTTTLSeconds, int(DefaultTURNRESTTTLSeconds))
	if err != nil {
		return Config{}, err
	}
	if ttl <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0", envTURNRESTTTLSeconds)
	}
	cfg.TURNRESTTTLSeconds = int64(ttl)
	cfg.TURNRESTUsernamePrefix = envOrDefault(lookup, envTURNRESTUsernamePrefix, DefaultTURNRESTUsernamePrefix)
	if strings.Contains(cfg.TURNRESTUsernamePrefix, ":") {
		return Config{}, fmt.Errorf("%s must not contain ':'", envTURNRESTUsernamePrefix)
	}
	if cfg.TURNRESTSharedSecret != "" && !hasTURNServer(cfg.ICEServers) {
		return Config{}, fmt.Errorf("%s is set but no turn:/turns: URL is configured", envTURNRESTSharedSecret)
	}

	cfg.PushGatewayURL = envOrDefault(lookup, envPushGatewayURL, "")
	cfg.PushGatewayToken = envOrDefault(lookup, envPushGatewayToken, "")
	cfg.PushTimeout, err = envDurationOrDefault(lookup, envPushTimeout, DefaultPushTimeout)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// TURNRESTEnabled reports whether ephemeral TURN credentials should be
// minted for /rtc/ice responses.
func (c Config) TURNRESTEnabled() bool {
	return c.TURNRESTSharedSecret != "" && hasTURNServer(c.ICEServers)
}

func NewLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return d, nil
}

func parseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(raw)) {
	case ModeDev:
		return ModeDev, nil
	case ModeProd:
		return ModeProd, nil
	default:
		return "", fmt.Errorf("%s: must be %q or %q, got %q", envMode, ModeDev, ModeProd, raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch LogFormat(strings.ToLower(raw)) {
	case LogFormatText:
		return LogFormatText, nil
	case LogFormatJSON:
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("%s: must be %q or %q, got %q", envLogFormat, LogFormatText, LogFormatJSON, raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%s: unknown level %q", envLogLevel, raw)
	}
}

func parseAuthMode(raw string) (AuthMode, error) {
	switch AuthMode(strings.ToLower(raw)) {
	case AuthModeNone:
		return AuthModeNone, nil
	case AuthModeAPIKey:
		return AuthModeAPIKey, nil
	default:
		return "", fmt.Errorf("%s: must be %q or %q, got %q", envAuthMode, AuthModeNone, AuthModeAPIKey, raw)
	}
}

func parseAllowedOrigins(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		if v != "*" && !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			return nil, fmt.Errorf("%s: origin %q must be \"*\" or start with http:// or https://", envAllowedOrigins, v)
		}
		out = append(out, v)
	}
	return out, nil
}

func defaultLogFormat(mode Mode) string {
	if mode == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevel(mode Mode) string {
	if mode == ModeProd {
		return "info"
	}
	return "debug"
}
