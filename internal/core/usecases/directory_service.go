package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/ports"
	"github.com/samirrijal/storemap/internal/pkg/geospatial"
	"github.com/samirrijal/storemap/internal/pkg/logging"
	"github.com/samirrijal/storemap/internal/pkg/metrics"
	"github.com/samirrijal/storemap/internal/pkg/telemetry"
)

// Limits caps query parameters before they reach the spatial index.
type Limits struct {
	MaxRadiusKm       float64
	MaxNearLimit      int
	MaxWithinLimit    int
	MaxEligibleStores int
}

// DefaultLimits returns the production caps.
func DefaultLimits() Limits {
	return Limits{
		MaxRadiusKm:       20,
		MaxNearLimit:      10,
		MaxWithinLimit:    500,
		MaxEligibleStores: 10,
	}
}

// DirectoryOption configures a DirectoryService.
type DirectoryOption func(*DirectoryService)

// WithLimits overrides the query caps.
func WithLimits(l Limits) DirectoryOption {
	return func(s *DirectoryService) { s.limits = l }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) DirectoryOption {
	return func(s *DirectoryService) { s.now = now }
}

// WithIDGenerator overrides store id generation.
func WithIDGenerator(fn func() string) DirectoryOption {
	return func(s *DirectoryService) { s.newID = fn }
}

// DirectoryService owns store writes and spatial queries. The repository is
// the source of truth; the spatial index is updated after it and may lag.
type DirectoryService struct {
	stores ports.StoreRepository
	index  ports.SpatialIndex
	events ports.EventPublisher
	limits Limits
	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
}

// NewDirectoryService creates a new DirectoryService. events may be nil.
func NewDirectoryService(
	stores ports.StoreRepository,
	index ports.SpatialIndex,
	events ports.EventPublisher,
	opts ...DirectoryOption,
) *DirectoryService {
	s := &DirectoryService{
		stores: stores,
		index:  index,
		events: events,
		limits: DefaultLimits(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		tracer: otel.Tracer(telemetry.TracerDirectory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the configured caps.
func (s *DirectoryService) Limits() Limits {
	return s.limits
}

// Create registers a new store at loc.
func (s *DirectoryService) Create(ctx context.Context, name string, loc domain.GeoPoint) (*domain.Store, error) {
	ctx, span := s.tracer.Start(ctx, "directory.Create")
	defer span.End()

	name = strings.TrimSpace(name)
	var verr domain.ValidationErrors
	validateName(&verr, name)
	validatePoint(&verr, "lat", "lon", loc)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	store := &domain.Store{
		ID:        s.newID(),
		Name:      name,
		Location:  loc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(telemetry.AttrStoreID.String(store.ID))

	if err := s.stores.Put(ctx, store); err != nil {
		return nil, s.writeFailed(span, "create", unavailable("put store", err))
	}
	if err := s.index.IndexPoint(ctx, store.ID, store.Location); err != nil {
		return nil, s.writeFailed(span, "create", unavailable("index point", err))
	}
	metrics.StoreWrites.WithLabelValues("create", "ok").Inc()

	s.publish(ctx, domain.EventStoreCreated, store)
	return store, nil
}

// SetServiceArea replaces the service area of an existing store. An open ring
// is closed by repeating its first vertex.
func (s *DirectoryService) SetServiceArea(ctx context.Context, id string, ring []domain.Position) error {
	ctx, span := s.tracer.Start(ctx, "directory.SetServiceArea",
		trace.WithAttributes(telemetry.AttrStoreID.String(id)))
	defer span.End()

	closed, err := normalizeRing(ring)
	if err != nil {
		return err
	}

	store, err := s.get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return s.writeFailed(span, "set_area", err)
		}
		return err
	}

	store.ServiceArea = domain.NewPolygon(closed)
	store.UpdatedAt = s.now()

	if err := s.stores.Put(ctx, store); err != nil {
		return s.writeFailed(span, "set_area", unavailable("put store", err))
	}
	if err := s.index.IndexShape(ctx, store.ID, store.ServiceArea); err != nil {
		return s.writeFailed(span, "set_area", unavailable("index shape", err))
	}
	metrics.StoreWrites.WithLabelValues("set_area", "ok").Inc()

	s.publish(ctx, domain.EventStoreAreaUpdated, store)
	return nil
}

// Get returns a store by id.
func (s *DirectoryService) Get(ctx context.Context, id string) (*domain.Store, error) {
	ctx, span := s.tracer.Start(ctx, "directory.Get",
		trace.WithAttributes(telemetry.AttrStoreID.String(id)))
	defer span.End()

	store, err := s.get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
	}
	return store, err
}

func (s *DirectoryService) get(ctx context.Context, id string) (*domain.Store, error) {
	if id == "" {
		return nil, fmt.Errorf("store %q: %w", id, domain.ErrNotFound)
	}
	store, err := s.stores.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, unavailable("get store", err)
	}
	return store, nil
}

// Nearest returns stores within the query radius ordered by distance, ties by
// id. Radius and limit are clamped to the configured maxima.
func (s *DirectoryService) Nearest(ctx context.Context, q domain.NearQuery) ([]domain.StoreHit, error) {
	var verr domain.ValidationErrors
	validatePoint(&verr, "lat", "lon", q.Center)
	if math.IsNaN(q.RadiusKm) || q.RadiusKm <= 0 {
		verr.Add("radius_km", fmt.Sprint(q.RadiusKm), "must be greater than 0")
	}
	if q.Limit <= 0 {
		verr.Add("limit", fmt.Sprint(q.Limit), "must be greater than 0")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	radius := math.Min(q.RadiusKm, s.limits.MaxRadiusKm)
	limit := min(q.Limit, s.limits.MaxNearLimit)

	ctx, span := s.tracer.Start(ctx, "directory.Nearest", trace.WithAttributes(
		telemetry.AttrRadiusKm.Float64(radius),
		telemetry.AttrLimit.Int(limit),
	))
	defer span.End()

	start := time.Now()
	neighbors, err := s.index.Nearest(ctx, q.Center, radius, limit)
	metrics.ObserveIndexQuery("nearest", start)
	if err != nil {
		s.mask(ctx, span, "nearest", err)
		return []domain.StoreHit{}, nil
	}

	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	byID, err := s.hydrate(ctx, ids)
	if err != nil {
		s.mask(ctx, span, "nearest", err)
		return []domain.StoreHit{}, nil
	}

	hits := make([]domain.StoreHit, 0, len(neighbors))
	for _, n := range neighbors {
		store, ok := byID[n.ID]
		if !ok {
			continue
		}
		dist := n.DistanceKm
		hits = append(hits, domain.StoreHit{
			ID:         store.ID,
			Name:       store.Name,
			Location:   store.Location,
			DistanceKm: &dist,
		})
	}
	span.SetAttributes(telemetry.AttrHits.Int(len(hits)))
	return hits, nil
}

// Eligible reports which stores' service areas cover p, boundary included.
func (s *DirectoryService) Eligible(ctx context.Context, p domain.GeoPoint) (*domain.Eligibility, error) {
	var verr domain.ValidationErrors
	validatePoint(&verr, "lat", "lon", p)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "directory.Eligible")
	defer span.End()

	empty := &domain.Eligibility{Eligible: false, Stores: []domain.StoreRef{}}

	start := time.Now()
	ids, err := s.index.Containing(ctx, p)
	metrics.ObserveIndexQuery("containing", start)
	if err != nil {
		s.mask(ctx, span, "eligible", err)
		return empty, nil
	}
	byID, err := s.hydrate(ctx, ids)
	if err != nil {
		s.mask(ctx, span, "eligible", err)
		return empty, nil
	}

	refs := make([]domain.StoreRef, 0, len(byID))
	for _, store := range byID {
		refs = append(refs, domain.StoreRef{ID: store.ID, Name: store.Name})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	if len(refs) > s.limits.MaxEligibleStores {
		refs = refs[:s.limits.MaxEligibleStores]
	}
	span.SetAttributes(telemetry.AttrHits.Int(len(refs)))
	return &domain.Eligibility{Eligible: len(refs) > 0, Stores: refs}, nil
}

// Within returns stores whose location lies inside box, edges included.
// A box with MinLon > MaxLon wraps across the antimeridian.
func (s *DirectoryService) Within(ctx context.Context, box domain.Bounds, limit int) ([]domain.StoreHit, error) {
	var verr domain.ValidationErrors
	validatePoint(&verr, "min_lat", "min_lon", domain.GeoPoint{Lat: box.MinLat, Lon: box.MinLon})
	validatePoint(&verr, "max_lat", "max_lon", domain.GeoPoint{Lat: box.MaxLat, Lon: box.MaxLon})
	if box.MinLat > box.MaxLat {
		verr.Add("min_lat", fmt.Sprint(box.MinLat), "must not exceed max_lat")
	}
	if limit <= 0 {
		verr.Add("limit", fmt.Sprint(limit), "must be greater than 0")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	limit = min(limit, s.limits.MaxWithinLimit)

	ctx, span := s.tracer.Start(ctx, "directory.Within", trace.WithAttributes(
		telemetry.AttrLimit.Int(limit),
		attribute.Bool("storemap.antimeridian", box.WrapsAntimeridian()),
	))
	defer span.End()

	start := time.Now()
	ids, err := s.index.Within(ctx, box, limit)
	metrics.ObserveIndexQuery("within", start)
	if err != nil {
		s.mask(ctx, span, "within", err)
		return []domain.StoreHit{}, nil
	}
	byID, err := s.hydrate(ctx, ids)
	if err != nil {
		s.mask(ctx, span, "within", err)
		return []domain.StoreHit{}, nil
	}

	hits := make([]domain.StoreHit, 0, len(ids))
	for _, id := range ids {
		if store, ok := byID[id]; ok {
			hits = append(hits, domain.StoreHit{ID: store.ID, Name: store.Name, Location: store.Location})
		}
	}
	span.SetAttributes(telemetry.AttrHits.Int(len(hits)))
	return hits, nil
}

// Heat aggregates store locations into slippy-map tiles at zoom precision.
func (s *DirectoryService) Heat(ctx context.Context, precision int) ([]domain.HeatTile, error) {
	if precision < geospatial.MinTilePrecision || precision > geospatial.MaxTilePrecision {
		var verr domain.ValidationErrors
		verr.Add("z", fmt.Sprint(precision),
			fmt.Sprintf("must be between %d and %d", geospatial.MinTilePrecision, geospatial.MaxTilePrecision))
		return nil, verr
	}

	ctx, span := s.tracer.Start(ctx, "directory.Heat",
		trace.WithAttributes(telemetry.AttrPrecision.Int(precision)))
	defer span.End()

	start := time.Now()
	tiles, err := s.index.Heat(ctx, precision)
	metrics.ObserveIndexQuery("heat", start)
	if err != nil {
		s.mask(ctx, span, "heat", err)
		return []domain.HeatTile{}, nil
	}
	if tiles == nil {
		tiles = []domain.HeatTile{}
	}
	span.SetAttributes(telemetry.AttrHits.Int(len(tiles)))
	return tiles, nil
}

func (s *DirectoryService) hydrate(ctx context.Context, ids []string) (map[string]domain.Store, error) {
	if len(ids) == 0 {
		return map[string]domain.Store{}, nil
	}
	stores, err := s.stores.GetMany(ctx, ids)
	if err != nil {
		return nil, unavailable("hydrate stores", err)
	}
	byID := make(map[string]domain.Store, len(stores))
	for _, st := range stores {
		byID[st.ID] = st
	}
	return byID, nil
}

// mask records a failed read that is answered with an empty result.
func (s *DirectoryService) mask(ctx context.Context, span trace.Span, op string, err error) {
	metrics.IndexMaskedFailures.WithLabelValues(op).Inc()
	span.RecordError(err)
	span.SetAttributes(telemetry.AttrMasked.Bool(true))
	logging.FromContext(ctx).Warn("spatial query failed, returning empty result", "op", op, "error", err)
}

func (s *DirectoryService) writeFailed(span trace.Span, op string, err error) error {
	metrics.StoreWrites.WithLabelValues(op, "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	return err
}

func (s *DirectoryService) publish(ctx context.Context, eventType string, store *domain.Store) {
	if s.events == nil {
		return
	}
	event := &domain.StoreEvent{Type: eventType, StoreID: store.ID, Store: store, At: store.UpdatedAt}
	if err := s.events.PublishStoreEvent(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
		logging.FromContext(ctx).Warn("publish store event failed", "type", eventType, "store_id", store.ID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType, "ok").Inc()
}

// unavailable wraps err as a backend failure unless it already is one.
func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.Unavailable(op, err)
}

func validateName(verr *domain.ValidationErrors, name string) {
	switch {
	case name == "":
		verr.Add("name", "", "is required")
	case utf8.RuneCountInString(name) > domain.MaxStoreNameLength:
		verr.Add("name", "", fmt.Sprintf("must be at most %d characters", domain.MaxStoreNameLength))
	}
}

func validatePoint(verr *domain.ValidationErrors, latField, lonField string, p domain.GeoPoint) {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		verr.Add(latField, fmt.Sprint(p.Lat), "must be between -90 and 90")
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180 {
		verr.Add(lonField, fmt.Sprint(p.Lon), "must be between -180 and 180")
	}
}

func normalizeRing(ring []domain.Position) ([]domain.Position, error) {
	var verr domain.ValidationErrors
	for i, pos := range ring {
		if !(domain.GeoPoint{Lat: pos[1], Lon: pos[0]}).Valid() {
			verr.Add(fmt.Sprintf("coordinates[%d]", i), fmt.Sprint(pos), "must be [lon, lat] within range")
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	closed := geospatial.CloseRing(ring)
	if geospatial.DistinctVertices(closed) < 3 {
		verr.Add("coordinates", fmt.Sprint(len(ring)), "must contain at least 3 distinct vertices")
		return nil, verr
	}
	return closed, nil
}
