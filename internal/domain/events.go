package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type EventType string

// Client to server.
const (
	EventJoinRoom     EventType = "join-room"
	EventLeaveRoom    EventType = "leave-room"
	EventOffer        EventType = "offer"
	EventAnswer       EventType = "answer"
	EventICECandidate EventType = "ice-candidate"
	EventPeerState    EventType = "peer-state"
	EventChatMessage  EventType = "chat-message"
	EventPing         EventType = "ping"
)

// Server to client.
const (
	EventUsersInRoom EventType = "users-in-room"
	EventUserJoined  EventType = "user-joined"
	EventUserLeft    EventType = "user-left"
	EventAuthError   EventType = "auth-error"
	EventError       EventType = "error"
	EventPong        EventType = "pong"
)

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidPayload   = errors.New("invalid payload")
)

var validate = validator.New()

// Envelope is the JSON frame exchanged on the realtime channel.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return env, nil
}

// Encode builds an outbound frame.
func Encode(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Decode unmarshals an inbound payload into v and enforces its validate tags.
// An absent payload decodes as an empty object.
func Decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

type JoinRoom struct {
	RoomID RoomID `json:"roomId" validate:"required,max=128"`
	// Name is checked by NormalizeName after trimming.
	Name  string `json:"name"`
	Token string `json:"token" validate:"max=4096"`
}

type LeaveRoom struct {
	RoomID RoomID `json:"roomId" validate:"max=128"`
}

// SessionDescription is an offer or answer in either direction.
// Inbound it carries To, outbound From; SDP is opaque.
type SessionDescription struct {
	To   ConnID          `json:"to,omitempty" validate:"required,max=64"`
	From ConnID          `json:"from,omitempty"`
	SDP  json.RawMessage `json:"sdp,omitempty"`
	Name string          `json:"name,omitempty" validate:"max=64"`
}

type ICECandidate struct {
	To        ConnID          `json:"to,omitempty" validate:"required,max=64"`
	From      ConnID          `json:"from,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type PeerState struct {
	RoomID   RoomID          `json:"roomId,omitempty" validate:"max=128"`
	ID       ConnID          `json:"id,omitempty"`
	Muted    json.RawMessage `json:"muted,omitempty"`
	VideoOff json.RawMessage `json:"videoOff,omitempty"`
	Hand     json.RawMessage `json:"hand,omitempty"`
}

// ChatScope is the only part of a chat message the relay reads.
type ChatScope struct {
	RoomID RoomID `json:"roomId" validate:"max=128"`
}

type Message struct {
	Message string `json:"message"`
}
