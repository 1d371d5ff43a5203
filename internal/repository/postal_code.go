package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/jmoiron/sqlx"
)

const postalCodeSelect = `
	SELECT
		pc.id, pc.city_id, pc.code, pc.point, pc.updated,
		c.name AS city_name,
		c.name_ascii AS city_name_ascii,
		c.slug AS city_slug,
		c.province AS city_province,
		c.country AS city_country,
		c.point AS city_point,
		c.updated AS city_updated,
		c.status AS city_status
	FROM {postal_codes} pc
	LEFT JOIN {cities} c ON c.id = pc.city_id`

// postalCodeRow is a postal code with its (optional) city flattened alongside
type postalCodeRow struct {
	ID            int64        `db:"id"`
	CityID        *int64       `db:"city_id"`
	Code          string       `db:"code"`
	Point         *model.Point `db:"point"`
	Updated       time.Time    `db:"updated"`
	CityName      *string      `db:"city_name"`
	CityNameASCII *string      `db:"city_name_ascii"`
	CitySlug      *string      `db:"city_slug"`
	CityProvince  *string      `db:"city_province"`
	CityCountry   *string      `db:"city_country"`
	CityPoint     *model.Point `db:"city_point"`
	CityUpdated   *time.Time   `db:"city_updated"`
	CityStatus    *int         `db:"city_status"`
}

func (row postalCodeRow) toModel() model.PostalCode {
	pc := model.PostalCode{
		ID:      row.ID,
		CityID:  row.CityID,
		Code:    row.Code,
		Point:   row.Point,
		Updated: row.Updated,
	}
	if row.CityID != nil && row.CityName != nil {
		city := &model.City{
			ID:        *row.CityID,
			Name:      *row.CityName,
			NameASCII: deref(row.CityNameASCII),
			Slug:      deref(row.CitySlug),
			Province:  deref(row.CityProvince),
			Country:   deref(row.CityCountry),
			Point:     row.CityPoint,
		}
		if row.CityUpdated != nil {
			city.Updated = *row.CityUpdated
		}
		if row.CityStatus != nil {
			city.Status = model.CityStatus(*row.CityStatus)
		}
		pc.City = city
	}
	return pc
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type postalCodeRepository struct {
	db        *sqlx.DB
	table     string
	cityTable string
	insert    inserter
}

func (r *postalCodeRepository) tables(query string) string {
	return strings.NewReplacer("{postal_codes}", r.table, "{cities}", r.cityTable).Replace(query)
}

func (r *postalCodeRepository) q(query string) string {
	return r.db.Rebind(r.tables(query))
}

func (r *postalCodeRepository) findOne(ctx context.Context, where string, args ...interface{}) (*model.PostalCode, error) {
	var rows []postalCodeRow
	if err := r.db.SelectContext(ctx, &rows, r.q(postalCodeSelect+" WHERE "+where+" ORDER BY pc.id LIMIT 2"), args...); err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		pc := rows[0].toModel()
		return &pc, nil
	}
	return nil, fmt.Errorf("%w: postal code %v", ErrMultipleResults, args)
}

func (r *postalCodeRepository) FindByCodeInCountry(ctx context.Context, code, country string) (*model.PostalCode, error) {
	return r.findOne(ctx, "pc.code = ? AND c.country = ?", code, country)
}

func (r *postalCodeRepository) FindUnassigned(ctx context.Context, code string) (*model.PostalCode, error) {
	return r.findOne(ctx, "pc.code = ? AND pc.city_id IS NULL", code)
}

func (r *postalCodeRepository) Create(ctx context.Context, pc *model.PostalCode) error {
	q := `
		INSERT INTO {postal_codes} (city_id, code, point, updated)
		VALUES (:city_id, :code, :point, :updated)`
	id, err := r.insert(ctx, r.db, r.tables(q), pc)
	if err != nil {
		return fmt.Errorf("failed to insert postal code %q: %w", pc.Code, err)
	}
	pc.ID = id
	return nil
}

func (r *postalCodeRepository) Update(ctx context.Context, pc *model.PostalCode) error {
	q := `
		UPDATE {postal_codes} SET
			city_id = :city_id,
			code = :code,
			point = :point,
			updated = :updated
		WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, r.tables(q), pc); err != nil {
		return fmt.Errorf("failed to update postal code %d: %w", pc.ID, err)
	}
	return nil
}

func (r *postalCodeRepository) Search(ctx context.Context, filter model.PostalCodeFilter) ([]model.PostalCode, error) {
	var (
		conds []string
		args  []interface{}
	)
	if query := strings.TrimSpace(filter.Query); query != "" {
		code := strings.NewReplacer(" ", "", "-", "").Replace(strings.ToUpper(query))
		conds = append(conds, "(pc.code LIKE ? OR LOWER(c.name) LIKE ?)")
		args = append(args, code+"%", "%"+strings.ToLower(query)+"%")
	}
	if filter.Country != "" {
		conds = append(conds, "c.country = ?")
		args = append(args, strings.ToUpper(filter.Country))
	}
	if filter.Province != "" {
		conds = append(conds, "c.province = ?")
		args = append(args, strings.ToUpper(filter.Province))
	}

	q := postalCodeSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY pc.code, pc.id LIMIT ?"
	args = append(args, limitOrDefault(filter.Limit))

	var rows []postalCodeRow
	if err := r.db.SelectContext(ctx, &rows, r.q(q), args...); err != nil {
		return nil, err
	}

	result := make([]model.PostalCode, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toModel())
	}
	return result, nil
}

func (r *postalCodeRepository) ExportRows(ctx context.Context, fn func(model.PostalCodeExportRow) error) error {
	q := `
		SELECT
			pc.code,
			c.name AS city_name,
			c.province AS city_province,
			c.country AS city_country,
			pc.updated,
			c.updated AS city_updated,
			pc.point,
			c.point AS city_point
		FROM {postal_codes} pc
		LEFT JOIN {cities} c ON c.id = pc.city_id
		ORDER BY pc.code, pc.id`

	rows, err := r.db.QueryxContext(ctx, r.q(q))
	if err != nil {
		return fmt.Errorf("failed to query postal codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row model.PostalCodeExportRow
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("failed to scan postal code: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}
