package model

// CityFilter narrows a city directory search
type CityFilter struct {
	Query    string
	Country  string
	Province string
	Limit    int
}

// PostalCodeFilter narrows a postal code directory search
type PostalCodeFilter struct {
	Query    string
	Country  string
	Province string
	Limit    int
}

// CityListResponse is the response for a city search
type CityListResponse struct {
	Results []City `json:"results"`
	Count   int    `json:"count"`
}

// PostalCodeListResponse is the response for a postal code search
type PostalCodeListResponse struct {
	Results []PostalCode `json:"results"`
	Count   int          `json:"count"`
}

// Coordinate represents geographic coordinates
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NearestCityResponse represents the response for nearest city search
type NearestCityResponse struct {
	City               City       `json:"city"`
	RequestCoordinates Coordinate `json:"request_coordinates"`
	DistanceKm         float64    `json:"distance_km"`
}
