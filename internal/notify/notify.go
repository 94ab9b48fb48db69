// Package notify is the outbound push-notification collaborator used for
// the missed-call fallback.
//
// The relay's routing path never calls it: an invite that cannot be routed
// is simply dropped, and the caller's own ring timeout decides whether to
// alert the recipient out-of-band via POST /calls/missed.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// MissedCall is the payload forwarded to the push gateway.
type MissedCall struct {
	RoomID      string `json:"roomId"`
	CallerID    string `json:"callerId"`
	CallerName  string `json:"callerName,omitempty"`
	CallType    string `json:"callType,omitempty"`
	RecipientID string `json:"recipientId"`
}

func (mc MissedCall) Validate() error {
	if mc.RoomID == "" {
		return errors.New("missing roomId")
	}
	if mc.CallerID == "" {
		return errors.New("missing callerId")
	}
	if mc.RecipientID == "" {
		return errors.New("missing recipientId")
	}
	return nil
}

type Dispatcher interface {
	Dispatch(ctx context.Context, mc MissedCall) error
}

// NopDispatcher drops notifications. Used when no push gateway is
// configured.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(ctx context.Context, mc MissedCall) error { return nil }

// HTTPDispatcher posts missed-call notifications to an external push
// gateway.
type HTTPDispatcher struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewHTTPDispatcher(url, token string, timeout time.Duration) *HTTPDispatcher {
	return &HTTPDispatcher{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, mc MissedCall) error {
	if err := mc.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(mc)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push gateway: unexpected status %d", resp.StatusCode)
	}
	return nil
}
