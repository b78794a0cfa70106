package http_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/storemap/api"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the OpenAPI document and checks it covers every route.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/stores",
		"/stores/{id}",
		"/stores/{id}/area",
		"/stores/near",
		"/stores/within",
		"/stores/heat",
		"/delivery/eligible",
		"/graphql",
		"/healthz",
		"/readyz",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	for _, schema := range []string{"GeoPoint", "Polygon", "Store", "StoreHit", "HitList", "Eligibility", "HeatTile", "Error"} {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
}

// TestResponsesMatchOpenAPI checks real handler output against the documented schemas.
func TestResponsesMatchOpenAPI(t *testing.T) {
	spec := loadSpec(t)
	env := newEnv(t)

	id := env.createStore(t, "A", 41.0, 29.0)
	env.post(t, "/stores/"+id+"/area", `{"coordinates":[[29,41],[29.1,41],[29.1,41.1],[29,41.1]]}`)

	tests := []struct {
		name   string
		schema string
		body   func() []byte
	}{
		{"create", "CreateStoreResponse", func() []byte {
			_, b := env.post(t, "/stores", `{"name":"B","lat":41.01,"lon":29.01}`)
			return b
		}},
		{"get", "Store", func() []byte { _, b := env.get(t, "/stores/"+id); return b }},
		{"near", "HitList", func() []byte { _, b := env.get(t, "/stores/near?lat=41&lon=29"); return b }},
		{"within", "HitList", func() []byte {
			_, b := env.get(t, "/stores/within?min_lat=40&min_lon=28&max_lat=42&max_lon=30")
			return b
		}},
		{"eligible", "Eligibility", func() []byte { _, b := env.get(t, "/delivery/eligible?lat=41.05&lon=29.05"); return b }},
		{"error", "Error", func() []byte { _, b := env.get(t, "/stores/near?lat=x"); return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc any
			if err := json.Unmarshal(tt.body(), &doc); err != nil {
				t.Fatal(err)
			}
			if err := spec.Components.Schemas[tt.schema].Value.VisitJSON(doc); err != nil {
				t.Errorf("response does not match %s: %v", tt.schema, err)
			}
		})
	}
}
