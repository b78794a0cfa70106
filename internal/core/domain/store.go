package domain

import "time"

// MaxStoreNameLength is the longest accepted store name, in characters.
const MaxStoreNameLength = 150

// Store is a physical store with a point location and an optional service area.
type Store struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Location    GeoPoint  `json:"loc"`
	ServiceArea *Polygon  `json:"service_area"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StoreHit is a store returned by a spatial query.
type StoreHit struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Location   GeoPoint `json:"loc"`
	DistanceKm *float64 `json:"distance_km,omitempty"` // computed field
}

// StoreRef is the short form used by eligibility answers.
type StoreRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Eligibility answers whether a point is served by any store.
type Eligibility struct {
	Eligible bool       `json:"eligible"`
	Stores   []StoreRef `json:"stores"`
}

// NearQuery selects stores around a center point.
type NearQuery struct {
	Center   GeoPoint
	RadiusKm float64
	Limit    int
}
