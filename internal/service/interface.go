package service

import (
	"context"

	"github.com/alexivanou/simple-geo/internal/model"
)

// ServiceInterface defines the read side used by the HTTP handlers
type ServiceInterface interface {
	SearchCities(ctx context.Context, filter model.CityFilter) (*model.CityListResponse, error)
	GetCityBySlug(ctx context.Context, slug string) (*model.City, error)
	SearchPostalCodes(ctx context.Context, filter model.PostalCodeFilter) (*model.PostalCodeListResponse, error)
	FindNearestCity(ctx context.Context, lat, lon float64, country string) (*model.NearestCityResponse, error)
}
