package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// Store event stream layout.
const (
	StreamName    = "STORE_EVENTS"
	SubjectPrefix = "stores."
	SubjectAll    = SubjectPrefix + ">"
)

// streamPublisher is the part of nats.JetStreamContext the publisher uses.
type streamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   streamPublisher
}

// NewPublisher connects to NATS and ensures the store event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectAll},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; update it
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishStoreEvent publishes event on its subject. Retries of the same
// event are deduplicated by JetStream within the stream's duplicate window.
func (p *Publisher) PublishStoreEvent(ctx context.Context, event *domain.StoreEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = p.js.Publish(SubjectFor(event.Type), data,
		nats.Context(ctx),
		nats.MsgId(messageID(event)),
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %s", p.conn.Status())
	}
	return nil
}

// Conn exposes the underlying connection for subscribers.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// SubjectFor maps an event type such as "store.created" to "stores.created".
func SubjectFor(eventType string) string {
	return SubjectPrefix + strings.TrimPrefix(eventType, "store.")
}

func messageID(event *domain.StoreEvent) string {
	return event.StoreID + ":" + event.Type + ":" + strconv.FormatInt(event.At.UnixNano(), 10)
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("storemap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
