package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/credshare/types"
)

// NATS is a bus on one core NATS subject.
//
// The connection belongs to the caller: Close drops this bus's
// subscriptions and flushes pending publishes but leaves the connection open.
type NATS struct {
	conn    *nats.Conn
	subject string
	codec   Codec
	logger  types.Logger

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

var _ types.Bus = (*NATS)(nil)

// NewNATS creates a bus publishing on subject.
//
// Parameters:
//   - conn: Connected NATS client
//   - subject: Session subject (see hash.Subject)
//   - codec: Wire codec; nil selects JSON
//   - logger: Logger for dropped frames
//
// Returns:
//   - *NATS: The bus
func NewNATS(conn *nats.Conn, subject string, codec Codec, logger types.Logger) *NATS {
	if codec == nil {
		codec = JSONCodec{}
	}

	return &NATS{conn: conn, subject: subject, codec: codec, logger: logger}
}

// Subject returns the subject used by the bus.
func (b *NATS) Subject() string {
	return b.subject
}

// Publish encodes and publishes msg.
func (b *NATS) Publish(_ context.Context, msg types.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return types.ErrBusClosed
	}

	data, err := b.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.Kind, err)
	}

	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Kind, err)
	}

	return nil
}

// Subscribe registers handler on the session subject.
//
// The NATS client delivers messages of one subscription sequentially, so
// handler sees one sender's messages in order.
func (b *NATS) Subscribe(handler func(types.Message)) (types.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, types.ErrBusClosed
	}

	sub, err := b.conn.Subscribe(b.subject, func(m *nats.Msg) {
		msg, err := b.codec.Decode(m.Data)
		if err != nil {
			b.logger.Warn("dropping undecodable bus message", "subject", m.Subject, "error", err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}

	// Make sure the server knows about the interest before returning, so a
	// publish issued right after Subscribe reaches this subscriber.
	if err := b.conn.FlushTimeout(2 * time.Second); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to register subscription on %s: %w", b.subject, err)
	}

	b.subs = append(b.subs, sub)

	return &natsSubscription{sub: sub}, nil
}

// Close unsubscribes all subscriptions and flushes outstanding publishes.
func (b *NATS) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}

	if b.conn.IsClosed() {
		return nil
	}

	return b.conn.FlushTimeout(time.Second)
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	if !s.sub.IsValid() {
		return nil
	}

	return s.sub.Unsubscribe()
}
