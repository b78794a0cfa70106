package http

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/storemap/internal/core/domain"
	"github.com/samirrijal/storemap/internal/core/usecases"
)

type gqlCallKey struct{}

// gqlCall carries the caller identity into resolvers and records the first
// admission rejection so the handler can answer 429 instead of 200.
type gqlCall struct {
	identity string

	mu       sync.Mutex
	rejected error
}

// admitField charges a resolver that is heavier than the route's own class.
func admitField(ctx context.Context, deps *Dependencies, class usecases.AdmissionClass) error {
	call, ok := ctx.Value(gqlCallKey{}).(*gqlCall)
	if !ok || deps.Admission == nil {
		return nil
	}
	if err := deps.Admission.Admit(ctx, class, call.identity); err != nil {
		call.mu.Lock()
		if call.rejected == nil {
			call.rejected = err
		}
		call.mu.Unlock()
		return err
	}
	return nil
}

// buildSchema creates the read-only GraphQL schema wired to the directory.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	serviceAreaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ServiceArea",
		Fields: graphql.Fields{
			"type": &graphql.Field{Type: graphql.String},
			"ring": &graphql.Field{
				Type:        graphql.NewList(graphql.NewList(graphql.Float)),
				Description: "Closed ring of [lon, lat] positions",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					poly, ok := p.Source.(*domain.Polygon)
					if !ok || poly == nil {
						return nil, nil
					}
					ring := poly.Ring()
					out := make([][]float64, len(ring))
					for i, pos := range ring {
						out[i] = []float64{pos[0], pos[1]}
					}
					return out, nil
				},
			},
		},
	})

	storeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Store",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.String},
			"name": &graphql.Field{Type: graphql.String},
			"loc":  &graphql.Field{Type: geoPointType},
			"service_area": &graphql.Field{
				Type: serviceAreaType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if s, ok := p.Source.(*domain.Store); ok && s.ServiceArea != nil {
						return s.ServiceArea, nil
					}
					return nil, nil
				},
			},
			"distance_km": &graphql.Field{
				Type: graphql.Float,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if h, ok := p.Source.(domain.StoreHit); ok && h.DistanceKm != nil {
						return *h.DistanceKm, nil
					}
					return nil, nil
				},
			},
		},
	})

	storeRefType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StoreRef",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.String},
			"name": &graphql.Field{Type: graphql.String},
		},
	})

	eligibilityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Eligibility",
		Fields: graphql.Fields{
			"eligible": &graphql.Field{Type: graphql.Boolean},
			"stores":   &graphql.Field{Type: graphql.NewList(storeRefType)},
		},
	})

	heatTileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "HeatTile",
		Fields: graphql.Fields{
			"key":       &graphql.Field{Type: graphql.String},
			"doc_count": &graphql.Field{Type: graphql.Int},
			"centroid":  &graphql.Field{Type: geoPointType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"store": &graphql.Field{
				Type:        storeType,
				Description: "Get a store by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Directory.Get(p.Context, id)
				},
			},
			"storesNear": &graphql.Field{
				Type:        graphql.NewList(storeType),
				Description: "Stores within radius_km of a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius_km": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: deps.Defaults.RadiusKm},
					"limit":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: deps.Defaults.NearLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Directory.Nearest(p.Context, domain.NearQuery{
						Center:   domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)},
						RadiusKm: p.Args["radius_km"].(float64),
						Limit:    p.Args["limit"].(int),
					})
				},
			},
			"storesWithin": &graphql.Field{
				Type:        graphql.NewList(storeType),
				Description: "Stores inside a bounding box",
				Args: graphql.FieldConfigArgument{
					"min_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"min_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"max_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: deps.Defaults.WithinLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					box := domain.Bounds{
						MinLat: p.Args["min_lat"].(float64),
						MinLon: p.Args["min_lon"].(float64),
						MaxLat: p.Args["max_lat"].(float64),
						MaxLon: p.Args["max_lon"].(float64),
					}
					return deps.Directory.Within(p.Context, box, p.Args["limit"].(int))
				},
			},
			"eligibility": &graphql.Field{
				Type:        eligibilityType,
				Description: "Stores whose delivery area covers a point",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Directory.Eligible(p.Context, domain.GeoPoint{
						Lat: p.Args["lat"].(float64),
						Lon: p.Args["lon"].(float64),
					})
				},
			},
			"heat": &graphql.Field{
				Type:        graphql.NewList(heatTileType),
				Description: "Store counts per slippy-map tile",
				Args: graphql.FieldConfigArgument{
					"z": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					// Same aggregation as GET /stores/heat, same budget.
					if err := admitField(p.Context, deps, usecases.ClassStrict); err != nil {
						return nil, err
					}
					return deps.Directory.Heat(p.Context, p.Args["z"].(int))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		call := &gqlCall{identity: callerIdentity(c)}
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        context.WithValue(c.UserContext(), gqlCallKey{}, call),
		})

		if call.rejected != nil {
			return call.rejected
		}
		return c.JSON(result)
	}
}
