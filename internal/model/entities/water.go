package entities

import "time"

// WaterTotals is the water a zone received inside one time window.
type WaterTotals struct {
	Rainfall   float64   `json:"rainfall"`
	Irrigation float64   `json:"irrigation"`
	Total      float64   `json:"total"`
	LastWater  time.Time `json:"last_water"`
}

// RunHistory is the controller's runtime log for a zone in a window.
type RunHistory struct {
	RuntimeSeconds float64   `json:"runtime_seconds"`
	LastRun        time.Time `json:"last_run"`
}

// ForecastDay is one day's precipitation probability, in percent.
type ForecastDay struct {
	Day         time.Time `json:"day"`
	Probability int       `json:"probability"`
}
