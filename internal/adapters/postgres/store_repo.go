package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/storemap/internal/core/domain"
)

const storeColumns = `id, name, lat, lon, COALESCE(service_area::text, ''), created_at, updated_at`

// StoreRepo implements ports.StoreRepository with pgx.
type StoreRepo struct {
	db *DB
}

// NewStoreRepo creates a new StoreRepo.
func NewStoreRepo(db *DB) *StoreRepo {
	return &StoreRepo{db: db}
}

// Put upserts the whole store record.
func (r *StoreRepo) Put(ctx context.Context, s *domain.Store) error {
	var area []byte
	if s.ServiceArea != nil {
		var err error
		if area, err = json.Marshal(s.ServiceArea); err != nil {
			return fmt.Errorf("encode service area: %w", err)
		}
	}
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO stores (id, name, lat, lon, service_area, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
		    service_area = EXCLUDED.service_area, updated_at = EXCLUDED.updated_at
	`, s.ID, s.Name, s.Location.Lat, s.Location.Lon, area, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert store %s: %w", s.ID, err)
	}
	return nil
}

// Get returns a store by id.
func (r *StoreRepo) Get(ctx context.Context, id string) (*domain.Store, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id)
	s, err := scanStore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("store %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get store %s: %w", id, err)
	}
	return s, nil
}

// GetMany returns the stores that exist among ids, in arbitrary order.
func (r *StoreRepo) GetMany(ctx context.Context, ids []string) ([]domain.Store, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get stores: %w", err)
	}
	return collectStores(rows)
}

// List returns up to limit stores with id > afterID, ordered by id.
func (r *StoreRepo) List(ctx context.Context, afterID string, limit int) ([]domain.Store, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+storeColumns+` FROM stores WHERE id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return collectStores(rows)
}

func collectStores(rows pgx.Rows) ([]domain.Store, error) {
	defer rows.Close()
	var out []domain.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanStore(row pgx.Row) (*domain.Store, error) {
	var s domain.Store
	var area string
	if err := row.Scan(&s.ID, &s.Name, &s.Location.Lat, &s.Location.Lon, &area, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if area != "" {
		s.ServiceArea = &domain.Polygon{}
		if err := json.Unmarshal([]byte(area), s.ServiceArea); err != nil {
			return nil, fmt.Errorf("decode service area of %s: %w", s.ID, err)
		}
	}
	return &s, nil
}
