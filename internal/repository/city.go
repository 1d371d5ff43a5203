package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/jmoiron/sqlx"
)

const cityColumns = "id, name, name_ascii, slug, province, country, point, updated, status"

type cityRepository struct {
	db     *sqlx.DB
	table  string
	insert inserter
}

// q substitutes the configured table name and rebinds placeholders for the driver
func (r *cityRepository) q(query string) string {
	return r.db.Rebind(strings.ReplaceAll(query, "{cities}", r.table))
}

func (r *cityRepository) GetByID(ctx context.Context, id int64) (*model.City, error) {
	var city model.City
	if err := r.db.GetContext(ctx, &city, r.q("SELECT "+cityColumns+" FROM {cities} WHERE id = ?"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &city, nil
}

func (r *cityRepository) GetBySlug(ctx context.Context, slug string) (*model.City, error) {
	var city model.City
	if err := r.db.GetContext(ctx, &city, r.q("SELECT "+cityColumns+" FROM {cities} WHERE slug = ?"), slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &city, nil
}

func (r *cityRepository) FindByNaturalKey(ctx context.Context, name, province, country string) (*model.City, error) {
	q := `
		SELECT ` + cityColumns + `
		FROM {cities}
		WHERE LOWER(name) = LOWER(?) AND province = ? AND country = ?
		ORDER BY id
		LIMIT 2
	`
	var cities []model.City
	if err := r.db.SelectContext(ctx, &cities, r.q(q), name, province, country); err != nil {
		return nil, err
	}
	switch len(cities) {
	case 0:
		return nil, nil
	case 1:
		return &cities[0], nil
	}
	return nil, fmt.Errorf("%w: city %q, %s, %s", ErrMultipleResults, name, province, country)
}

func (r *cityRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, r.q("SELECT COUNT(*) FROM {cities} WHERE slug = ?"), slug); err != nil {
		return false, err
	}
	return count > 0, nil
}

// cityParams adds the plain lat/lon columns that back the bounding box
// lookups next to the WKT point
type cityParams struct {
	*model.City
	Lat *float64 `db:"lat"`
	Lon *float64 `db:"lon"`
}

func newCityParams(city *model.City) cityParams {
	p := cityParams{City: city}
	if city.Point != nil {
		lat, lon := city.Point.Lat, city.Point.Lon
		p.Lat, p.Lon = &lat, &lon
	}
	return p
}

func (r *cityRepository) Create(ctx context.Context, city *model.City) error {
	q := `
		INSERT INTO {cities} (name, name_ascii, slug, province, country, point, lat, lon, updated, status)
		VALUES (:name, :name_ascii, :slug, :province, :country, :point, :lat, :lon, :updated, :status)`
	id, err := r.insert(ctx, r.db, strings.ReplaceAll(q, "{cities}", r.table), newCityParams(city))
	if err != nil {
		return fmt.Errorf("failed to insert city %q: %w", city.Slug, err)
	}
	city.ID = id
	return nil
}

func (r *cityRepository) Update(ctx context.Context, city *model.City) error {
	q := `
		UPDATE {cities} SET
			name = :name,
			name_ascii = :name_ascii,
			slug = :slug,
			province = :province,
			country = :country,
			point = :point,
			lat = :lat,
			lon = :lon,
			updated = :updated,
			status = :status
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, strings.ReplaceAll(q, "{cities}", r.table), newCityParams(city)); err != nil {
		return fmt.Errorf("failed to update city %d: %w", city.ID, err)
	}
	return nil
}

func (r *cityRepository) Search(ctx context.Context, filter model.CityFilter) ([]model.City, error) {
	var (
		conds []string
		args  []interface{}
	)
	if query := strings.TrimSpace(filter.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(name_ascii) LIKE ? OR slug LIKE ?)")
		args = append(args, like, like, like)
	}
	if filter.Country != "" {
		conds = append(conds, "country = ?")
		args = append(args, strings.ToUpper(filter.Country))
	}
	if filter.Province != "" {
		conds = append(conds, "province = ?")
		args = append(args, strings.ToUpper(filter.Province))
	}

	q := "SELECT " + cityColumns + " FROM {cities}"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY name, id LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	var cities []model.City
	if err := r.db.SelectContext(ctx, &cities, r.q(q), args...); err != nil {
		return nil, err
	}
	return cities, nil
}

func (r *cityRepository) ListWithPoints(ctx context.Context, country string, box *model.BoundingBox) ([]model.City, error) {
	q := "SELECT " + cityColumns + " FROM {cities} WHERE point IS NOT NULL"
	var args []interface{}
	if country != "" {
		q += " AND country = ?"
		args = append(args, strings.ToUpper(country))
	}
	if box != nil {
		q += " AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?"
		args = append(args, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	}

	var cities []model.City
	if err := r.db.SelectContext(ctx, &cities, r.q(q), args...); err != nil {
		return nil, err
	}
	return cities, nil
}
