package irrigation_controller

import (
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
)

const (
	metFraction  = 0.9
	halfFraction = 0.5
)

// DecisionInput is everything the engine looks at for a single zone.
type DecisionInput struct {
	Zone                entities.Zone
	TotalWater          float64
	LastWater           time.Time
	Requirement         float64
	RainDays            []entities.ForecastDay
	ForcedRun           bool
	MaxDaysBetweenWater int
	PeriodEnd           time.Time
}

type Decision struct {
	ZoneID int
	Status entities.ZoneStatus
	Amount float64
	Day    time.Time
	Policy entities.AnchorPolicy
}

// Candidate turns a running decision into a timed run. ok is false when nothing should run.
func (d Decision) Candidate(z entities.Zone, start time.Time) (entities.RunCandidate, bool) {
	if !d.Status.Runs() || d.Amount <= 0 {
		return entities.RunCandidate{}, false
	}
	dur := z.RunLength(d.Amount)
	if dur <= 0 {
		return entities.RunCandidate{}, false
	}
	return entities.RunCandidate{ZoneID: z.ID, Start: start, Duration: dur, Policy: d.Policy}, true
}

// Engine derives a zone's status from its own totals, the forecast and the period position.
type Engine struct {
	loc *time.Location
	now func() time.Time
}

func NewEngine(loc *time.Location, now func() time.Time) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{loc: loc, now: now}
}

func (e *Engine) Decide(in DecisionInput) Decision {
	now := e.now()
	d := Decision{ZoneID: in.Zone.ID, Status: entities.RequirementMet}

	if in.Requirement <= 0 || in.TotalWater > metFraction*in.Requirement {
		return d
	}
	remaining := in.Requirement - in.TotalWater

	switch {
	case in.ForcedRun:
		d.Status = entities.ForcedRun
		d.Amount = remaining
		d.Day = entities.Midnight(now, e.loc)
		d.Policy = entities.AnchorLast

	case len(in.RainDays) > 0:
		maxDry := time.Duration(in.MaxDaysBetweenWater) * 24 * time.Hour
		earliest := in.RainDays[0].Day
		if !in.LastWater.IsZero() && earliest.Sub(in.LastWater) <= maxDry {
			d.Status = entities.Delayed
			return d
		}
		if in.TotalWater >= halfFraction*in.Requirement {
			d.Status = entities.DelayedHalfMet
			return d
		}
		d.Status = entities.ReducedWatering
		d.Amount = halfFraction * remaining
		d.Day = e.candidateDay(now, in)
		d.Policy = entities.AnchorFirst

	default:
		d.Status = entities.Watering
		d.Amount = remaining
		d.Day = e.candidateDay(now, in)
		d.Policy = entities.AnchorFirst
	}

	if in.Zone.WateringRate <= 0 {
		return Decision{ZoneID: in.Zone.ID, Status: entities.Unavailable}
	}
	return d
}

// DecideDaily handles zones with a fixed daily requirement. todayWater is what the zone
// received since local midnight.
func (e *Engine) DecideDaily(z entities.Zone, todayWater float64) Decision {
	d := Decision{ZoneID: z.ID, Status: entities.RequirementMet}
	short := z.DailyRequirement - todayWater
	if short <= 0 {
		return d
	}
	if z.WateringRate <= 0 {
		d.Status = entities.Unavailable
		return d
	}
	d.Status = entities.Watering
	d.Amount = short
	d.Day = entities.Midnight(e.now(), e.loc)
	d.Policy = entities.AnchorLast
	return d
}

// candidateDay is min(period end, last water + max dry spell), never before today.
func (e *Engine) candidateDay(now time.Time, in DecisionInput) time.Time {
	day := in.PeriodEnd
	if !in.LastWater.IsZero() {
		limit := in.LastWater.Add(time.Duration(in.MaxDaysBetweenWater) * 24 * time.Hour)
		if limit.Before(day) {
			day = limit
		}
	}
	if day.IsZero() || day.Before(now) {
		day = now
	}
	return entities.Midnight(day, e.loc)
}
