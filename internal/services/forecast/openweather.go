package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
)

const defaultOWMBaseURL = "https://api.openweathermap.org/data/3.0/onecall"

type owmDaily struct {
	Dt  int64   `json:"dt"`
	Pop float64 `json:"pop"` // 0..1
}

type owmResp struct {
	Timezone string     `json:"timezone"`
	Daily    []owmDaily `json:"daily"`
}

type OpenWeatherOptions struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxFailures  uint32
	BreakerReset time.Duration
	HTTPClient   *http.Client
}

// OpenWeather reads daily precipitation probability from the One Call API.
// Calls go through a circuit breaker so a dead endpoint is not hammered every cycle.
type OpenWeather struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewOpenWeather(o OpenWeatherOptions) *OpenWeather {
	if o.BaseURL == "" {
		o.BaseURL = defaultOWMBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxFailures == 0 {
		o.MaxFailures = 3
	}
	if o.BreakerReset <= 0 {
		o.BreakerReset = 5 * time.Minute
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	return &OpenWeather{
		apiKey:  o.APIKey,
		baseURL: o.BaseURL,
		http:    hc,
		cb:      newBreaker("openweather", o.MaxFailures, o.BreakerReset),
	}
}

func newBreaker(name string, fails uint32, reset time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: reset,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
	})
}

func (c *OpenWeather) PrecipitationForecast(ctx context.Context, now, end time.Time, loc entities.Location) ([]entities.ForecastDay, error) {
	if c.apiKey == "" {
		return nil, errors.New("openweather: missing api key")
	}
	v, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, loc.Latitude, loc.Longitude)
	})
	if err != nil {
		return nil, err
	}
	out := v.(*owmResp)

	tz, err := loc.Load()
	if err != nil {
		tz = time.UTC
	}
	today := entities.Midnight(now, tz)
	slots := make([]entities.ForecastDay, 0, len(out.Daily))
	for _, d := range out.Daily {
		day := time.Unix(d.Dt, 0).In(tz)
		if day.Before(today) || day.After(end) {
			continue
		}
		slots = append(slots, entities.ForecastDay{Day: day, Probability: int(math.Round(d.Pop * 100))})
	}
	return CollapseDaily(slots, tz), nil
}

func (c *OpenWeather) fetch(ctx context.Context, lat, lon float64) (*owmResp, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("exclude", "current,minutely,hourly,alerts")
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sep+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("owm status %d: %s", resp.StatusCode, string(b))
	}
	var out owmResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("owm decode: %w", err)
	}
	if len(out.Daily) == 0 {
		return nil, errors.New("owm: no daily data")
	}
	return &out, nil
}

// State exposes the breaker state for health reporting.
func (c *OpenWeather) State() string { return c.cb.State().String() }
