package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexivanou/simple-geo/internal/model"
)

// CityInput identifies a city by its natural key
type CityInput struct {
	Name     string
	Province string
	Country  string
	Point    *model.Point
	// Updated stamps a newly created city; nil means now
	Updated *time.Time
}

// GetOrCreateCity finds a city by case-insensitive name, province and
// country, creating it with status imported when absent. It returns a nil
// city when any part of the natural key is empty.
func (s *Service) GetOrCreateCity(ctx context.Context, in CityInput) (*model.City, bool, error) {
	if in.Name == "" || in.Province == "" || in.Country == "" {
		return nil, false, nil
	}

	city, err := s.cityRepo.FindByNaturalKey(ctx, in.Name, in.Province, in.Country)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up city %q: %w", in.Name, err)
	}
	if city != nil {
		return city, false, nil
	}

	city = &model.City{
		Name:     in.Name,
		Province: in.Province,
		Country:  in.Country,
		Point:    in.Point,
		Status:   model.CityStatusImported,
	}
	if err := s.SaveCity(ctx, city, in.Updated); err != nil {
		return nil, false, err
	}
	return city, true, nil
}

// ShouldUpdatePoint reports whether a stored point must be replaced by a
// candidate: the candidate exists, is strictly newer and differs.
func ShouldUpdatePoint(stored *model.Point, storedUpdated time.Time, candidate *model.Point, candidateTime time.Time) bool {
	if candidate == nil {
		return false
	}
	if !candidateTime.After(storedUpdated) {
		return false
	}
	return !model.PointsEqual(stored, candidate)
}

// UpdateCityPoint replaces the city's point when ShouldUpdatePoint allows
// it. The city is re-saved with candidateTime as its update time.
func (s *Service) UpdateCityPoint(ctx context.Context, city *model.City, candidate *model.Point, candidateTime time.Time) (bool, error) {
	if !ShouldUpdatePoint(city.Point, city.Updated, candidate, candidateTime) {
		return false, nil
	}
	city.Point = candidate
	if err := s.SaveCity(ctx, city, &candidateTime); err != nil {
		return false, err
	}
	return true, nil
}
