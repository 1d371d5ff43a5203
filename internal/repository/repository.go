package repository

import (
	"context"
	"errors"

	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/jmoiron/sqlx"
)

// ErrMultipleResults is returned when a lookup that must match at most one
// record matches several. It points at a data integrity problem.
var ErrMultipleResults = errors.New("multiple records returned")

// CityRepository defines operations for cities
type CityRepository interface {
	GetByID(ctx context.Context, id int64) (*model.City, error)
	GetBySlug(ctx context.Context, slug string) (*model.City, error)
	// FindByNaturalKey matches name case-insensitively within province and country
	FindByNaturalKey(ctx context.Context, name, province, country string) (*model.City, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, city *model.City) error
	Update(ctx context.Context, city *model.City) error
	Search(ctx context.Context, filter model.CityFilter) ([]model.City, error)
	// ListWithPoints returns the cities that have a point, optionally limited
	// to one country and to a bounding box
	ListWithPoints(ctx context.Context, country string, box *model.BoundingBox) ([]model.City, error)
}

// PostalCodeRepository defines operations for postal codes
type PostalCodeRepository interface {
	// FindByCodeInCountry matches code among postal codes linked to a city in country
	FindByCodeInCountry(ctx context.Context, code, country string) (*model.PostalCode, error)
	// FindUnassigned matches code among postal codes with no city
	FindUnassigned(ctx context.Context, code string) (*model.PostalCode, error)
	Create(ctx context.Context, pc *model.PostalCode) error
	Update(ctx context.Context, pc *model.PostalCode) error
	Search(ctx context.Context, filter model.PostalCodeFilter) ([]model.PostalCode, error)
	// ExportRows streams every postal code joined to its city
	ExportRows(ctx context.Context, fn func(model.PostalCodeExportRow) error) error
}

// Container holds all repositories
type Container struct {
	City       CityRepository
	PostalCode PostalCodeRepository
}

// inserter runs a named INSERT and returns the new row id
type inserter func(ctx context.Context, db *sqlx.DB, query string, arg interface{}) (int64, error)

// NewRepositories creates repository implementations based on DB type
func NewRepositories(db *sqlx.DB, dbType config.DBType, tables config.TableConfig) *Container {
	insert := sqliteInsert
	if dbType == config.DBTypePostgreSQL {
		insert = pgInsert
	}

	return &Container{
		City:       &cityRepository{db: db, table: tables.City, insert: insert},
		PostalCode: &postalCodeRepository{db: db, table: tables.PostalCode, cityTable: tables.City, insert: insert},
	}
}

const defaultLimit = 50

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
