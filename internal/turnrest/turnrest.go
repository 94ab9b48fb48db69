// Package turnrest mints coturn-compatible TURN REST credentials.
//
// See https://datatracker.ietf.org/doc/html/draft-uberti-behave-turn-rest:
//
//	username   = <unix_expiry>:<prefix>:<connection_id>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// Expiry uses the server clock in UTC plus the configured TTL.
package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

type Minter struct {
	secret []byte
	ttl    int64
	prefix string
	now    func() time.Time
}

type Config struct {
	SharedSecret string
	TTLSeconds   int64
	Prefix       string

	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewMinter(cfg Config) (*Minter, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("turnrest: shared secret is required")
	}
	if cfg.TTLSeconds <= 0 {
		return nil, errors.New("turnrest: TTLSeconds must be > 0")
	}
	if cfg.Prefix == "" || strings.Contains(cfg.Prefix, ":") {
		return nil, errors.New("turnrest: prefix is required and must not contain ':'")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Minter{
		secret: []byte(cfg.SharedSecret),
		ttl:    cfg.TTLSeconds,
		prefix: cfg.Prefix,
		now:    now,
	}, nil
}

// Mint returns ephemeral credentials scoped to connID (used only to make
// usernames attributable in TURN server logs; coturn validates the HMAC
// and expiry, not the id).
func (m *Minter) Mint(connID string) (Credentials, error) {
	if connID == "" {
		return Credentials{}, errors.New("turnrest: connID is required")
	}
	if strings.Contains(connID, ":") {
		return Credentials{}, errors.New("turnrest: connID must not contain ':'")
	}

	expiry := m.now().UTC().Unix() + m.ttl
	username := fmt.Sprintf("%d:%s:%s", expiry, m.prefix, connID)

	mac := hmac.New(sha1.New, m.secret)
	mac.Write([]byte(username))
	credential := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return Credentials{
		Username:   username,
		Credential: credential,
		ExpiryUnix: expiry,
	}, nil
}
