package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexivanou/simple-geo/internal/geocode"
	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/alexivanou/simple-geo/internal/repository"
	"github.com/alexivanou/simple-geo/internal/slug"
	"go.uber.org/zap"
)

// Geocoder resolves an address query to a location
type Geocoder interface {
	Geocode(ctx context.Context, q geocode.Query) (*geocode.Result, error)
}

// Service holds the rules applied when cities and postal codes are saved,
// and the read side used by the HTTP directory
type Service struct {
	cityRepo   repository.CityRepository
	postalRepo repository.PostalCodeRepository
	geocoder   Geocoder
	slugFormat slug.Format
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithGeocoder enables geocoding of cities saved without a point
func WithGeocoder(g Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithSlugFormat overrides the slug templates
func WithSlugFormat(f slug.Format) Option {
	return func(s *Service) { s.slugFormat = f }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new service instance
func NewService(
	cityRepo repository.CityRepository,
	postalRepo repository.PostalCodeRepository,
	opts ...Option,
) *Service {
	s := &Service{
		cityRepo:   cityRepo,
		postalRepo: postalRepo,
		slugFormat: slug.DefaultFormat,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current time in UTC
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// SaveCity derives the ASCII name and slug, stamps the update time and
// persists the city. lastUpdated overrides the stamp when non-nil.
// A city without a point is geocoded first; a failed lookup is logged and
// the city is saved without one.
func (s *Service) SaveCity(ctx context.Context, city *model.City, lastUpdated *time.Time) error {
	city.NameASCII = slug.ToASCII(city.Name)

	sl, err := s.slugFormat.Generate(ctx, slug.Fields{
		Name:           city.Name,
		Province:       city.Province,
		Country:        city.Country,
		CountryDisplay: slug.CountryName(city.Country),
	}, city.Slug, s.cityRepo.SlugExists)
	if err != nil {
		return fmt.Errorf("failed to generate slug for %s: %w", city, err)
	}
	city.Slug = sl

	city.Updated = s.stamp(lastUpdated)

	if city.Point == nil && s.geocoder != nil {
		city.Point = s.geocodeCity(ctx, city)
	}

	if city.ID == 0 {
		if err := s.cityRepo.Create(ctx, city); err != nil {
			return fmt.Errorf("failed to create city %s: %w", city, err)
		}
		return nil
	}
	if err := s.cityRepo.Update(ctx, city); err != nil {
		return fmt.Errorf("failed to update city %s: %w", city, err)
	}
	return nil
}

func (s *Service) geocodeCity(ctx context.Context, city *model.City) *model.Point {
	res, err := s.geocoder.Geocode(ctx, geocode.Query{
		Country: city.Country,
		Region:  city.Province,
		City:    city.Name,
	})
	if err != nil {
		s.logger.Warn("Geocoding city failed, saving without a point",
			zap.String("city", city.String()),
			zap.Error(err),
		)
		return nil
	}
	if res.Empty() || res.Point == nil {
		return nil
	}
	return model.NewPoint(res.Point.Lng, res.Point.Lat)
}

// SavePostalCode stamps the update time and persists the postal code
func (s *Service) SavePostalCode(ctx context.Context, pc *model.PostalCode, lastUpdated *time.Time) error {
	pc.Updated = s.stamp(lastUpdated)

	if pc.ID == 0 {
		if err := s.postalRepo.Create(ctx, pc); err != nil {
			return fmt.Errorf("failed to create postal code %s: %w", pc.Code, err)
		}
		return nil
	}
	if err := s.postalRepo.Update(ctx, pc); err != nil {
		return fmt.Errorf("failed to update postal code %s: %w", pc.Code, err)
	}
	return nil
}

func (s *Service) stamp(lastUpdated *time.Time) time.Time {
	if lastUpdated != nil {
		return lastUpdated.UTC()
	}
	return s.Now()
}
