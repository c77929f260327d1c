package aggregator

import (
	"context"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

type RolloverMode struct {
	Excess  bool
	Deficit bool
}

func (m RolloverMode) Enabled() bool { return m.Excess || m.Deficit }

// Adjustment is what earlier periods contribute to a zone's current period.
type Adjustment struct {
	Credit    float64   // counted as water already received
	Extra     float64   // added to the requirement
	Basis     float64   // previous-period total the adjustment was derived from
	LastWater time.Time // latest water event in the previous period
}

// Rollover derives per-zone adjustments from the periods preceding cur. The previous
// period is always queried so its last-water time is known. With both excess and
// deficit enabled the basis is the average of the two preceding periods, which damps
// over-water / under-water oscillation between consecutive periods.
//
// Zones with a daily override are skipped.
func (l *Ledger) Rollover(ctx context.Context, zones []entities.Zone, cur entities.Period, mode RolloverMode) (map[int]Adjustment, error) {
	weekly := make([]entities.Zone, 0, len(zones))
	for _, z := range zones {
		if !z.HasDailyOverride() {
			weekly = append(weekly, z)
		}
	}
	out := make(map[int]Adjustment, len(weekly))
	if len(weekly) == 0 {
		return out, nil
	}

	prev := cur.Previous()
	prevTotals, err := l.TotalsForPeriod(ctx, weekly, prev.Start, cur.Start)
	var note error
	if err != nil {
		if fault.IsFatal(err) {
			return nil, err
		}
		note = err
	}

	var olderTotals map[int]entities.WaterTotals
	if mode.Excess && mode.Deficit {
		older := prev.Previous()
		olderTotals, err = l.TotalsForPeriod(ctx, weekly, older.Start, prev.Start)
		if err != nil {
			if fault.IsFatal(err) {
				return nil, err
			}
			note = err
		}
	}

	for _, z := range weekly {
		p := prevTotals[z.ID]
		adj := Adjustment{LastWater: p.LastWater, Basis: p.Total}
		if olderTotals != nil {
			adj.Basis = (p.Total + olderTotals[z.ID].Total) / 2
		}
		if mode.Enabled() && z.WeeklyRequirement > 0 {
			diff := adj.Basis - z.WeeklyRequirement
			switch {
			case diff > 0 && mode.Excess:
				adj.Credit = diff
			case diff < 0 && mode.Deficit:
				adj.Extra = -diff
			}
		}
		if adj.Credit > 0 || adj.Extra > 0 {
			l.log.Info("rollover adjustment", logx.Int("zone", z.ID), logx.Float64("basis", adj.Basis),
				logx.Float64("credit", adj.Credit), logx.Float64("extra", adj.Extra))
		}
		out[z.ID] = adj
	}
	return out, note
}
