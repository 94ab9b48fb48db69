package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

type MessageType string

const (
	TypeInvite    MessageType = "invite"
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"
	TypeAccept    MessageType = "accept"
	TypeReject    MessageType = "reject"
	TypeHangup    MessageType = "hangup"
)

// Envelope is the only message shape the relay understands. Payload is
// opaque: the relay never inspects or mutates it, and routed frames are
// forwarded as the raw bytes received, never re-encoded.
type Envelope struct {
	Type    MessageType     `json:"type"`
	To      string          `json:"to"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseEnvelope decodes and validates a signaling frame.
//
// Unknown fields are tolerated so payload producers can evolve
// independently of the relay, but trailing data after the envelope object
// is rejected.
func ParseEnvelope(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Envelope{}, fmt.Errorf("unexpected trailing data")
	}
	if err := env.validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) validate() error {
	switch e.Type {
	case TypeInvite, TypeOffer, TypeAnswer, TypeCandidate, TypeAccept, TypeReject, TypeHangup:
	default:
		return fmt.Errorf("unsupported message type %q", e.Type)
	}
	if e.To == "" {
		return fmt.Errorf("%s message missing to", e.Type)
	}
	if e.RoomID == "" {
		return fmt.Errorf("%s message missing roomId", e.Type)
	}
	return nil
}
