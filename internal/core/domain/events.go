package domain

import "time"

// Store event types published after successful writes.
const (
	EventStoreCreated     = "store.created"
	EventStoreAreaUpdated = "store.area_updated"
)

// StoreEvent describes a change to a store.
type StoreEvent struct {
	Type    string    `json:"type"`
	StoreID string    `json:"store_id"`
	Store   *Store    `json:"store,omitempty"`
	At      time.Time `json:"at"`
}
