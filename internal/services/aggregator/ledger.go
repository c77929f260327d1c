package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

// RainfallSource reports the cumulative rain in [start, end] and the latest day whose
// rain exceeded minRain. A negative total means "unavailable".
type RainfallSource interface {
	Rainfall(ctx context.Context, start, end time.Time, minRain float64) (total float64, lastRainDay time.Time, err error)
}

// HistorySource reports per-zone runtime inside [start, end].
type HistorySource interface {
	RunHistory(ctx context.Context, zoneIDs []int, start, end time.Time) (map[int]entities.RunHistory, error)
}

// Ledger aggregates rainfall and irrigation runtime into per-zone water totals.
type Ledger struct {
	rain    RainfallSource
	history HistorySource
	minRain float64
	log     logx.Logger
}

// NewLedger accepts nil sources; a missing source contributes nothing.
func NewLedger(rain RainfallSource, history HistorySource, minRain float64, log logx.Logger) *Ledger {
	return &Ledger{rain: rain, history: history, minRain: minRain, log: log.With(logx.String("component", "ledger"))}
}

// TotalsForPeriod queries rainfall once and run history once for all zones.
//
// A rainfall failure is fatal. A history failure degrades irrigation to zero and is
// returned as a Recoverable error alongside usable totals.
func (l *Ledger) TotalsForPeriod(ctx context.Context, zones []entities.Zone, start, end time.Time) (map[int]entities.WaterTotals, error) {
	var (
		rain     float64
		lastRain time.Time
	)
	if l.rain != nil {
		r, last, err := l.rain.Rainfall(ctx, start, end, l.minRain)
		if err != nil {
			return nil, fault.New(fault.Fatal, "ledger.rainfall", err)
		}
		if r < 0 {
			l.log.Warn("rainfall unavailable, using zero", logx.Time("start", start), logx.Time("end", end))
			r = 0
		}
		rain, lastRain = r, last
	}

	var (
		hist    map[int]entities.RunHistory
		histErr error
	)
	if l.history != nil {
		ids := make([]int, 0, len(zones))
		for _, z := range zones {
			ids = append(ids, z.ID)
		}
		h, err := l.history.RunHistory(ctx, ids, start, end)
		if err != nil {
			// only an explicitly tagged fatal error aborts; plain failures degrade
			var fe *fault.Error
			if errors.As(err, &fe) && fe.Kind == fault.Fatal {
				return nil, err
			}
			l.log.Warn("run history unavailable, irrigation totals set to zero", logx.Err(err))
			histErr = fault.New(fault.Recoverable, "ledger.history", err)
		} else {
			hist = h
		}
	}

	out := make(map[int]entities.WaterTotals, len(zones))
	for _, z := range zones {
		h := hist[z.ID]
		irrigation := 0.0
		if h.RuntimeSeconds > 0 {
			irrigation = h.RuntimeSeconds / 60 * z.WateringRate
		}
		last := lastRain
		if h.LastRun.After(last) {
			last = h.LastRun
		}
		out[z.ID] = entities.WaterTotals{
			Rainfall:   rain,
			Irrigation: irrigation,
			Total:      rain + irrigation,
			LastWater:  last,
		}
	}
	l.log.Debug("totals computed", logx.Time("start", start), logx.Time("end", end), logx.Float64("rain", rain))
	return out, histErr
}
