package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/golang/geo/s2"
)

// earthRadiusKm is the mean Earth radius
const earthRadiusKm = 6371.0088

// nearestSearchRadii are the half-heights, in degrees, of the boxes tried
// around the origin before falling back to scanning every city
var nearestSearchRadii = []float64{0.5, 2, 8, 32}

// ErrInvalidCoordinates is returned for a latitude or longitude out of range
var ErrInvalidCoordinates = errors.New("invalid coordinates range")

// SearchCities lists cities matching the filter
func (s *Service) SearchCities(ctx context.Context, filter model.CityFilter) (*model.CityListResponse, error) {
	filter.Query = strings.TrimSpace(filter.Query)

	cities, err := s.cityRepo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search cities: %w", err)
	}
	if cities == nil {
		cities = []model.City{}
	}
	return &model.CityListResponse{Results: cities, Count: len(cities)}, nil
}

// GetCityBySlug returns the city with the slug, or nil
func (s *Service) GetCityBySlug(ctx context.Context, slug string) (*model.City, error) {
	city, err := s.cityRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	return city, nil
}

// SearchPostalCodes lists postal codes matching the filter
func (s *Service) SearchPostalCodes(ctx context.Context, filter model.PostalCodeFilter) (*model.PostalCodeListResponse, error) {
	filter.Query = strings.TrimSpace(filter.Query)

	codes, err := s.postalRepo.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search postal codes: %w", err)
	}
	if codes == nil {
		codes = []model.PostalCode{}
	}
	return &model.PostalCodeListResponse{Results: codes, Count: len(codes)}, nil
}

// FindNearestCity finds the closest city with a point to the given
// coordinates, optionally within one country. It returns nil when no city
// has a point.
//
// Candidates are read through growing bounding boxes. Every city outside a
// box is more than the box radius away, so a best match within that radius
// is the overall best.
func (s *Service) FindNearestCity(ctx context.Context, lat, lon float64, country string) (*model.NearestCityResponse, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinates
	}
	origin := s2.LatLngFromDegrees(lat, lon)

	for _, radius := range nearestSearchRadii {
		box, ok := nearestSearchBox(lat, lon, radius)
		if !ok {
			break
		}
		city, dist, err := s.nearestIn(ctx, origin, country, box)
		if err != nil {
			return nil, err
		}
		if city != nil && dist <= radius*math.Pi/180 {
			return nearestResponse(city, lat, lon, dist), nil
		}
	}

	city, dist, err := s.nearestIn(ctx, origin, country, nil)
	if err != nil || city == nil {
		return nil, err
	}
	return nearestResponse(city, lat, lon, dist), nil
}

// nearestIn returns the closest city in box and its angular distance in radians
func (s *Service) nearestIn(ctx context.Context, origin s2.LatLng, country string, box *model.BoundingBox) (*model.City, float64, error) {
	cities, err := s.cityRepo.ListWithPoints(ctx, country, box)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find nearest city: %w", err)
	}

	best := -1
	var bestDist float64
	for i, c := range cities {
		if c.Point == nil {
			continue
		}
		dist := float64(origin.Distance(s2.LatLngFromDegrees(c.Point.Lat, c.Point.Lon)))
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return nil, 0, nil
	}
	return &cities[best], bestDist, nil
}

// nearestSearchBox returns the box holding every point within radius
// degrees of (lat, lon). ok is false when that box would cross the
// antimeridian.
func nearestSearchBox(lat, lon, radius float64) (*model.BoundingBox, bool) {
	box := &model.BoundingBox{
		MinLat: math.Max(lat-radius, -90),
		MaxLat: math.Min(lat+radius, 90),
		MinLon: -180,
		MaxLon: 180,
	}

	// sin(d/2) >= cos(lat1)cos(lat2)sin(dlon/2) bounds the longitude spread
	edge := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat)) * math.Pi / 180
	ratio := math.Sin(radius*math.Pi/360) / math.Cos(edge)
	if ratio >= 1 || math.IsInf(ratio, 0) || math.IsNaN(ratio) {
		return box, true
	}
	spread := 2 * math.Asin(ratio) * 180 / math.Pi
	if lon-spread < -180 || lon+spread > 180 {
		return nil, false
	}
	box.MinLon, box.MaxLon = lon-spread, lon+spread
	return box, true
}

func nearestResponse(city *model.City, lat, lon, dist float64) *model.NearestCityResponse {
	return &model.NearestCityResponse{
		City:               *city,
		RequestCoordinates: model.Coordinate{Lat: lat, Lon: lon},
		DistanceKm:         dist * earthRadiusKm,
	}
}
