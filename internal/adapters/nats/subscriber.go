package natsadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/storemap/internal/core/domain"
)

// Subscriber fans store events out to in-process listeners.
type Subscriber struct {
	conn *nats.Conn
}

// NewSubscriber creates a subscriber sharing conn.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeStoreEvents delivers every store event to handler until the
// returned function is called. Undecodable messages are dropped.
func (s *Subscriber) SubscribeStoreEvents(handler func(event *domain.StoreEvent, raw []byte)) (func(), error) {
	sub, err := s.conn.Subscribe(SubjectAll, decodeStoreEvents(handler))
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", SubjectAll, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

func decodeStoreEvents(handler func(event *domain.StoreEvent, raw []byte)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event domain.StoreEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("dropping malformed store event", "subject", msg.Subject, "error", err)
			return
		}
		handler(&event, msg.Data)
	}
}
