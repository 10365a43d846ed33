package messaging

import (
	"context"
	"io"
	"time"
)

// HeaderMsgID is the header NATS JetStream uses to drop duplicate publishes.
const HeaderMsgID = "Nats-Msg-Id"

// Messaging is a publisher that owns a broker connection.
type Messaging interface {
	io.Closer

	Publisher
}

// Publisher publishes challenge events to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg OutgoingMessage) (PublishResult, error)
}

// OutgoingMessage is a broker-agnostic message.
type OutgoingMessage struct {
	Body []byte

	// ID, when set, is sent as HeaderMsgID so a replayed transition is
	// delivered once to streams with duplicate detection.
	ID string

	// Headers may repeat a key; empty keys are dropped.
	Headers []Header
}

// Header is a key/value pair used for message headers.
type Header struct {
	Key   string
	Value []byte
}

// WithHeader returns a copy of m with one more header.
func (m OutgoingMessage) WithHeader(key, value string) OutgoingMessage {
	m.Headers = append(m.Headers[:len(m.Headers):len(m.Headers)], Header{Key: key, Value: []byte(value)})
	return m
}

// PublishResult carries broker metadata for a published message.
type PublishResult struct {
	Subject    string
	AcceptedAt time.Time
}
