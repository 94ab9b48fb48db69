package signaling

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/config"
)

var ErrUnauthorized = errors.New("unauthorized")

// Authorizer gates access to the signaling surface before the WebSocket
// upgrade. It guards the deployment (e.g. a shared key between the family
// app backend proxy and the relay); it does not authenticate user
// identities, which remain the surrounding application's responsibility.
type Authorizer interface {
	Authorize(r *http.Request) error
}

type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) Authorize(r *http.Request) error { return nil }

// APIKeyAuthorizer accepts requests carrying the expected key as
// `Authorization: Bearer <key>`, `X-Api-Key: <key>`, or an `api_key` query
// parameter (WebSocket clients in browsers cannot set headers).
type APIKeyAuthorizer struct {
	Key string
}

func (a APIKeyAuthorizer) Authorize(r *http.Request) error {
	cred := credentialFromRequest(r)
	if cred == "" || a.Key == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(cred), []byte(a.Key)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func credentialFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.URL.Query().Get("api_key"))
}

func NewAuthorizer(cfg config.Config) (Authorizer, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone:
		return AllowAllAuthorizer{}, nil
	case config.AuthModeAPIKey:
		if cfg.APIKey == "" {
			return nil, errors.New("api_key auth mode requires a key")
		}
		return APIKeyAuthorizer{Key: cfg.APIKey}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}
