package types

import (
	"context"
	"fmt"
	"time"
)

// Kind is the discriminant of a bus Message.
type Kind uint8

const (
	// KindLeaderRequest asks any current leader to announce itself.
	KindLeaderRequest Kind = iota + 1

	// KindLeaderAnnounce declares the sender as leader.
	KindLeaderAnnounce

	// KindLeaderFailed reports that the sender gave up (or failed to take) leadership.
	KindLeaderFailed

	// KindLeaderLeft reports that the leader is shutting down.
	KindLeaderLeft

	// KindRefresh reports that the leader obtained a new credential.
	KindRefresh

	// KindLogout tells every peer to drop its credential and stop.
	KindLogout
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindLeaderRequest:
		return "leader_request"
	case KindLeaderAnnounce:
		return "leader_announce"
	case KindLeaderFailed:
		return "leader_failed"
	case KindLeaderLeft:
		return "leader_left"
	case KindRefresh:
		return "refresh"
	case KindLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	if k < KindLeaderRequest || k > KindLogout {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}

	return []byte(k.String()), nil
}

// UnmarshalText decodes a wire name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for c := KindLeaderRequest; c <= KindLogout; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownKind, text)
}

// carriesPayload reports whether messages of this kind may embed a credential.
func (k Kind) carriesPayload() bool {
	return k == KindLeaderAnnounce || k == KindRefresh
}

// CredentialPayload is the wire form of a credential embedded in a message.
type CredentialPayload struct {
	Value      string `json:"value" msgpack:"value"`
	Message    string `json:"message,omitempty" msgpack:"message,omitempty"`
	IssuedAt   int64  `json:"issuedAt" msgpack:"issuedAt"`
	TTLSeconds int64  `json:"ttlSeconds" msgpack:"ttlSeconds"`
}

// NewCredentialPayload converts a credential into its wire form.
func NewCredentialPayload(c Credential) *CredentialPayload {
	return &CredentialPayload{
		Value:      c.Value,
		Message:    c.Message,
		IssuedAt:   c.IssuedAt.UnixMilli(),
		TTLSeconds: int64(c.TTL / time.Second),
	}
}

// Credential converts the payload back into a Credential.
func (p *CredentialPayload) Credential() Credential {
	return Credential{
		Value:    p.Value,
		Message:  p.Message,
		IssuedAt: time.UnixMilli(p.IssuedAt),
		TTL:      time.Duration(p.TTLSeconds) * time.Second,
	}
}

// Message is a bus message exchanged between peers of one session.
//
// Build messages with the per-kind constructors; the set of kinds is closed
// and Validate rejects anything else.
type Message struct {
	Kind      Kind               `json:"kind" msgpack:"kind"`
	SenderID  string             `json:"senderId" msgpack:"senderId"`
	Timestamp int64              `json:"timestamp" msgpack:"timestamp"`
	Payload   *CredentialPayload `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

func newMessage(kind Kind, sender string, at time.Time) Message {
	return Message{Kind: kind, SenderID: sender, Timestamp: at.UnixMilli()}
}

// NewLeaderRequest creates a LeaderRequest message.
func NewLeaderRequest(sender string, at time.Time) Message {
	return newMessage(KindLeaderRequest, sender, at)
}

// NewLeaderAnnounce creates a LeaderAnnounce message. payload may be nil.
func NewLeaderAnnounce(sender string, at time.Time, payload *CredentialPayload) Message {
	msg := newMessage(KindLeaderAnnounce, sender, at)
	msg.Payload = payload

	return msg
}

// NewLeaderFailed creates a LeaderFailed message.
func NewLeaderFailed(sender string, at time.Time) Message {
	return newMessage(KindLeaderFailed, sender, at)
}

// NewLeaderLeft creates a LeaderLeft message.
func NewLeaderLeft(sender string, at time.Time) Message {
	return newMessage(KindLeaderLeft, sender, at)
}

// NewRefresh creates a Refresh message. payload may be nil.
func NewRefresh(sender string, at time.Time, payload *CredentialPayload) Message {
	msg := newMessage(KindRefresh, sender, at)
	msg.Payload = payload

	return msg
}

// NewLogout creates a Logout message.
func NewLogout(sender string, at time.Time) Message {
	return newMessage(KindLogout, sender, at)
}

// SentAt returns the sender's timestamp.
func (m Message) SentAt() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Validate checks that the message is well formed.
//
// Returns:
//   - error: ErrUnknownKind or ErrInvalidMessage (wrapped with detail), nil if valid
func (m Message) Validate() error {
	switch m.Kind {
	case KindLeaderRequest, KindLeaderAnnounce, KindLeaderFailed, KindLeaderLeft, KindRefresh, KindLogout:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(m.Kind))
	}

	if m.SenderID == "" {
		return fmt.Errorf("%w: empty sender", ErrInvalidMessage)
	}

	if m.Payload != nil {
		if !m.Kind.carriesPayload() {
			return fmt.Errorf("%w: %s must not carry a payload", ErrInvalidMessage, m.Kind)
		}
		if m.Payload.Value == "" {
			return fmt.Errorf("%w: empty payload value", ErrInvalidMessage)
		}
	}

	return nil
}

// Bus is a best-effort broadcast channel shared by all peers of a session.
//
// Publish is fire-and-forget: a publish with no subscribers is not an error
// and delivery is not guaranteed. Handlers see messages from one sender in
// the order they were sent; there is no ordering across senders.
type Bus interface {
	// Publish broadcasts msg to every subscriber, the sender included.
	Publish(ctx context.Context, msg Message) error

	// Subscribe registers handler for every received message.
	Subscribe(handler func(Message)) (Subscription, error)

	// Close releases resources owned by the bus.
	Close() error
}
