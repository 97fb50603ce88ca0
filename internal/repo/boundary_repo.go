package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/autopkg/internal/domain"
)

// BoundaryRepo — репозиторий границ поверх PostGIS.
// Геометрия наружу отдаётся как GeoJSON (ST_AsGeoJSON).
type BoundaryRepo struct {
	pool *pgxpool.Pool
}

// NewBoundaryRepo создаёт новый BoundaryRepo.
func NewBoundaryRepo(pool *pgxpool.Pool) *BoundaryRepo {
	return &BoundaryRepo{pool: pool}
}

// GetByName возвращает границу с геометрией и envelope.
func (r *BoundaryRepo) GetByName(ctx context.Context, name string) (*domain.Boundary, error) {
	query := `
		SELECT name, ST_AsGeoJSON(geometry), ST_AsGeoJSON(ST_Envelope(geometry))
		FROM boundaries
		WHERE name = $1
	`
	var boundary domain.Boundary
	var geometry, envelope string
	err := r.pool.QueryRow(ctx, query, name).Scan(&boundary.Name, &geometry, &envelope)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get boundary %s: %w", name, err)
	}
	boundary.Geometry = []byte(geometry)
	boundary.Envelope = []byte(envelope)
	return &boundary, nil
}

// List возвращает сводки всех границ без геометрии.
func (r *BoundaryRepo) List(ctx context.Context, limit, offset int) ([]domain.BoundarySummary, error) {
	query := `
		SELECT id, name
		FROM boundaries
		ORDER BY name ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list boundaries: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// SearchByName ищет границы по подстроке имени (без учёта регистра).
func (r *BoundaryRepo) SearchByName(ctx context.Context, nameFragment string, limit int) ([]domain.BoundarySummary, error) {
	query := `
		SELECT id, name
		FROM boundaries
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, nameFragment, limit)
	if err != nil {
		return nil, fmt.Errorf("search boundaries by name: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

// SearchByPoint возвращает границы, содержащие точку (lon, lat, EPSG:4326).
func (r *BoundaryRepo) SearchByPoint(ctx context.Context, lon, lat float64, limit int) ([]domain.BoundarySummary, error) {
	query := `
		SELECT id, name
		FROM boundaries
		WHERE ST_Intersects(geometry, ST_SetSRID(ST_MakePoint($1, $2), 4326))
		ORDER BY name ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, lon, lat, limit)
	if err != nil {
		return nil, fmt.Errorf("search boundaries by point: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func scanSummaries(rows pgx.Rows) ([]domain.BoundarySummary, error) {
	var summaries []domain.BoundarySummary
	for rows.Next() {
		var s domain.BoundarySummary
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan boundary summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
