package openaq

import "encoding/json"

// CitiesResponse is the body of GET /cities.
type CitiesResponse struct {
	Results []CityResult `json:"results"`
}

// CityResult is one entry of a cities lookup.
type CityResult struct {
	Country string `json:"country"`
	City    string `json:"city"`
}

// LatestResponse is the body of GET /latest.
type LatestResponse struct {
	Results []LatestResult `json:"results"`
}

// LatestResult groups the latest readings of one station.
type LatestResult struct {
	Country      string           `json:"country"`
	City         string           `json:"city"`
	Location     string           `json:"location,omitempty"`
	Measurements []RawMeasurement `json:"measurements"`
}

// RawMeasurement is a single reading as sent by the provider.
// Value is kept as a json.Number so the decimal text is not reformatted.
type RawMeasurement struct {
	Parameter   string      `json:"parameter"`
	Value       json.Number `json:"value"`
	Unit        string      `json:"unit"`
	LastUpdated string      `json:"lastUpdated,omitempty"`
}
