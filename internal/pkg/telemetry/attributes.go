package telemetry

import "go.opentelemetry.io/otel/attribute"

// Tracer names.
const (
	TracerDirectory = "storemap/directory"
	TracerGateway   = "storemap/gateway"
	TracerReindex   = "storemap/reindex"
)

// Span attribute keys.
const (
	AttrStoreID   = attribute.Key("storemap.store_id")
	AttrRadiusKm  = attribute.Key("storemap.radius_km")
	AttrLimit     = attribute.Key("storemap.limit")
	AttrPrecision = attribute.Key("storemap.precision")
	AttrHits      = attribute.Key("storemap.hits")
	AttrMasked    = attribute.Key("storemap.masked")
)
