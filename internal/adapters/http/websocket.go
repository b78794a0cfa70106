package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/pkg/geospatial"
	"github.com/samirrijal/storemap/internal/pkg/metrics"
)

// Viewport changes a client may send: a short burst, then two per second.
const (
	wsControlRate  = rate.Limit(2)
	wsControlBurst = 10
)

func newControlLimiter() *rate.Limiter {
	return rate.NewLimiter(wsControlRate, wsControlBurst)
}

// wsMessage is sent from client to narrow or widen the relayed events.
type wsMessage struct {
	Action string         `json:"action"` // "watch" | "unwatch"
	Bounds *domain.Bounds `json:"bounds"` // viewport for "watch"
}

// WebSocketHandler returns a handler that relays store events to map
// clients. By default every event is sent. A client sends
// {"action":"watch","bounds":{...}} to receive only events for stores inside
// its viewport and {"action":"unwatch"} to receive everything again.
func WebSocketHandler(source StoreEventSource) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		var viewport *domain.Bounds

		// Helper: thread-safe write
		write := func(data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		writeJSON := func(v any) {
			data, err := json.Marshal(v)
			if err == nil {
				_ = write(data)
			}
		}

		unsubscribe, err := source.SubscribeStoreEvents(func(event *domain.StoreEvent, raw []byte) {
			mu.Lock()
			box := viewport
			mu.Unlock()
			if !eventVisible(event, box) {
				return
			}
			_ = write(raw)
		})
		if err != nil {
			slog.Error("ws subscribe failed", "remote", remoteAddr, "error", err)
			return
		}
		defer unsubscribe()

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		control := newControlLimiter()
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			if !control.Allow() {
				writeJSON(map[string]string{"error": "too many messages"})
				continue
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "watch":
				if m.Bounds == nil || !validViewport(*m.Bounds) {
					writeJSON(map[string]string{"error": "watch requires valid bounds"})
					continue
				}
				box := *m.Bounds
				mu.Lock()
				viewport = &box
				mu.Unlock()
				writeJSON(map[string]any{"status": "watching", "bounds": box})
			case "unwatch":
				mu.Lock()
				viewport = nil
				mu.Unlock()
				writeJSON(map[string]string{"status": "watching all"})
			default:
				writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}

// eventVisible reports whether an event concerns a store inside box. Events
// without a store body are always relayed.
func eventVisible(event *domain.StoreEvent, box *domain.Bounds) bool {
	if box == nil || event.Store == nil {
		return true
	}
	return geospatial.InBounds(*box, event.Store.Location)
}

func validViewport(b domain.Bounds) bool {
	sw := domain.GeoPoint{Lat: b.MinLat, Lon: b.MinLon}
	ne := domain.GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon}
	return sw.Valid() && ne.Valid() && b.MinLat <= b.MaxLat
}
