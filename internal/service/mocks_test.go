package service

import (
	"context"

	"github.com/alexivanou/simple-geo/internal/geocode"
	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/stretchr/testify/mock"
)

// MockCityRepository implements repository.CityRepository interface
type MockCityRepository struct {
	mock.Mock
}

func (m *MockCityRepository) GetByID(ctx context.Context, id int64) (*model.City, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.City), args.Error(1)
}

func (m *MockCityRepository) GetBySlug(ctx context.Context, slug string) (*model.City, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.City), args.Error(1)
}

func (m *MockCityRepository) FindByNaturalKey(ctx context.Context, name, province, country string) (*model.City, error) {
	args := m.Called(ctx, name, province, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.City), args.Error(1)
}

func (m *MockCityRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockCityRepository) Create(ctx context.Context, city *model.City) error {
	args := m.Called(ctx, city)
	return args.Error(0)
}

func (m *MockCityRepository) Update(ctx context.Context, city *model.City) error {
	args := m.Called(ctx, city)
	return args.Error(0)
}

func (m *MockCityRepository) Search(ctx context.Context, filter model.CityFilter) ([]model.City, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.City), args.Error(1)
}

// ListWithPoints also accepts a func(*model.BoundingBox) []model.City as
// its return value, so tests can answer per box
func (m *MockCityRepository) ListWithPoints(ctx context.Context, country string, box *model.BoundingBox) ([]model.City, error) {
	args := m.Called(ctx, country, box)
	if fn, ok := args.Get(0).(func(*model.BoundingBox) []model.City); ok {
		return fn(box), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.City), args.Error(1)
}

// MockPostalCodeRepository implements repository.PostalCodeRepository interface
type MockPostalCodeRepository struct {
	mock.Mock
}

func (m *MockPostalCodeRepository) FindByCodeInCountry(ctx context.Context, code, country string) (*model.PostalCode, error) {
	args := m.Called(ctx, code, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PostalCode), args.Error(1)
}

func (m *MockPostalCodeRepository) FindUnassigned(ctx context.Context, code string) (*model.PostalCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PostalCode), args.Error(1)
}

func (m *MockPostalCodeRepository) Create(ctx context.Context, pc *model.PostalCode) error {
	args := m.Called(ctx, pc)
	return args.Error(0)
}

func (m *MockPostalCodeRepository) Update(ctx context.Context, pc *model.PostalCode) error {
	args := m.Called(ctx, pc)
	return args.Error(0)
}

func (m *MockPostalCodeRepository) Search(ctx context.Context, filter model.PostalCodeFilter) ([]model.PostalCode, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PostalCode), args.Error(1)
}

func (m *MockPostalCodeRepository) ExportRows(ctx context.Context, fn func(model.PostalCodeExportRow) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockGeocoder implements Geocoder
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, q geocode.Query) (*geocode.Result, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}
