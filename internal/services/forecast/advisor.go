package forecast

import (
	"context"
	"sort"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

// Source returns daily precipitation probabilities from now through end, ascending by day.
type Source interface {
	PrecipitationForecast(ctx context.Context, now, end time.Time, loc entities.Location) ([]entities.ForecastDay, error)
}

// RainDays keeps the days whose probability meets minProbability, in input order.
func RainDays(forecast []entities.ForecastDay, minProbability int) []entities.ForecastDay {
	out := make([]entities.ForecastDay, 0, len(forecast))
	for _, d := range forecast {
		if d.Probability >= minProbability {
			out = append(out, d)
		}
	}
	return out
}

func EarliestRainDay(rainDays []entities.ForecastDay) (entities.ForecastDay, bool) {
	if len(rainDays) == 0 {
		return entities.ForecastDay{}, false
	}
	return rainDays[0], true
}

// CollapseDaily merges sub-day slots into one entry per local day holding the highest
// probability, ascending by day.
func CollapseDaily(slots []entities.ForecastDay, loc *time.Location) []entities.ForecastDay {
	byDay := make(map[time.Time]int, len(slots))
	for _, s := range slots {
		day := entities.Midnight(s.Day, loc)
		if p, ok := byDay[day]; !ok || s.Probability > p {
			byDay[day] = s.Probability
		}
	}
	out := make([]entities.ForecastDay, 0, len(byDay))
	for day, p := range byDay {
		out = append(out, entities.ForecastDay{Day: day, Probability: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// Advisor wraps a Source so that forecast trouble never stops a cycle.
type Advisor struct {
	src Source
	loc entities.Location
	log logx.Logger
}

func NewAdvisor(src Source, loc entities.Location, log logx.Logger) *Advisor {
	return &Advisor{src: src, loc: loc, log: log.With(logx.String("component", "forecast"))}
}

// Forecast returns the raw forecast. On failure it returns an empty forecast and a
// Recoverable error describing what happened.
func (a *Advisor) Forecast(ctx context.Context, now, end time.Time) ([]entities.ForecastDay, error) {
	if a == nil || a.src == nil {
		return nil, nil
	}
	days, err := a.src.PrecipitationForecast(ctx, now, end, a.loc)
	if err != nil {
		a.log.Warn("forecast unavailable, assuming no rain", logx.Err(err))
		return nil, fault.New(fault.Recoverable, "forecast", err)
	}
	a.log.Debug("forecast received", logx.Int("days", len(days)))
	return days, nil
}
