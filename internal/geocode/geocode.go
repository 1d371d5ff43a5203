// Package geocode resolves addresses and address components to coordinates
// through the Google Geocoding HTTP API.
package geocode

import (
	"errors"
	"fmt"
	"strings"
)

// Address component types kept in a Result
const (
	PostalCode               = "postal_code"
	Locality                 = "locality"
	Sublocality              = "sublocality"
	AdministrativeAreaLevel1 = "administrative_area_level_1"
	AdministrativeAreaLevel2 = "administrative_area_level_2"
	AdministrativeAreaLevel3 = "administrative_area_level_3"
	Country                  = "country"
)

var keptComponents = map[string]bool{
	PostalCode:               true,
	Locality:                 true,
	Sublocality:              true,
	AdministrativeAreaLevel1: true,
	AdministrativeAreaLevel2: true,
	AdministrativeAreaLevel3: true,
	Country:                  true,
}

// Query is a free-text address and/or structured component filters
type Query struct {
	Address    string
	Country    string
	Region     string
	City       string
	PostalCode string
}

// Components renders the structured part of the query as the API's
// pipe-separated component filter, e.g. "country:CA|locality:Toronto"
func (q Query) Components() string {
	var parts []string
	add := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			parts = append(parts, key+":"+v)
		}
	}
	add("postal_code", q.PostalCode)
	add("country", q.Country)
	add("administrative_area", q.Region)
	add("locality", q.City)
	return strings.Join(parts, "|")
}

// Location is a latitude/longitude pair as returned by the API
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Viewport is the recommended bounding box for displaying a result
type Viewport struct {
	Northeast Location `json:"northeast"`
	Southwest Location `json:"southwest"`
}

// Result is the flattened first match of a geocoding response. A zero-result
// response yields an empty Result.
type Result struct {
	Point      *Location         `json:"point,omitempty"`
	Viewport   *Viewport         `json:"viewport,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Empty reports whether the lookup found nothing
func (r *Result) Empty() bool {
	return r == nil || (r.Point == nil && r.Viewport == nil && len(r.Components) == 0)
}

// Component returns the short name of a component type, or ""
func (r *Result) Component(typ string) string {
	if r == nil {
		return ""
	}
	return r.Components[typ]
}

// CityName prefers the locality and falls back to the sublocality
func (r *Result) CityName() string {
	if name := r.Component(Locality); name != "" {
		return name
	}
	return r.Component(Sublocality)
}

// Error is returned when the API answers with a status other than OK or
// ZERO_RESULTS. Most of the time it means the quota is spent.
type Error struct {
	Status  string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("geocoding error: %s: %s", e.Status, e.Message)
	}
	return "geocoding error: " + e.Status
}

// IsQuotaError reports whether err signals an exhausted request quota
func IsQuotaError(err error) bool {
	var gerr *Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch gerr.Status {
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return true
	}
	return false
}
