package irrigation_controller

import (
	"math"
	"testing"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
)

// Wednesday; the period runs Sunday 2024-06-02 .. Saturday 2024-06-08.
var wed = time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)

func testZone() entities.Zone {
	return entities.Zone{ID: 1, WateringRate: 0.5, WeeklyRequirement: 10}
}

func baseInput() DecisionInput {
	p := entities.PeriodContaining(wed, time.UTC, 7)
	return DecisionInput{
		Zone:                testZone(),
		Requirement:         10,
		MaxDaysBetweenWater: 3,
		PeriodEnd:           p.End(),
	}
}

func day(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }

func TestDecide(t *testing.T) {
	e := NewEngine(time.UTC, fixedClock(wed))

	cases := []struct {
		name   string
		mod    func(*DecisionInput)
		status entities.ZoneStatus
		amount float64
		day    time.Time
		policy entities.AnchorPolicy
	}{
		{
			name:   "requirement met at 95%",
			mod:    func(in *DecisionInput) { in.TotalWater = 9.5 },
			status: entities.RequirementMet,
		},
		{
			name:   "watering on period end without forecast",
			mod:    func(in *DecisionInput) { in.TotalWater = 2 },
			status: entities.Watering, amount: 8, day: day(6, 8), policy: entities.AnchorFirst,
		},
		{
			name: "watering no later than the dry spell allows",
			mod: func(in *DecisionInput) {
				in.TotalWater = 2
				in.LastWater = day(6, 4).Add(7 * time.Hour)
			},
			status: entities.Watering, amount: 8, day: day(6, 7), policy: entities.AnchorFirst,
		},
		{
			name: "delayed when rain comes soon enough",
			mod: func(in *DecisionInput) {
				in.TotalWater = 2
				in.LastWater = day(6, 4)
				in.RainDays = []entities.ForecastDay{{Day: day(6, 5), Probability: 80}}
			},
			status: entities.Delayed,
		},
		{
			name: "reduced watering when rain is too far out",
			mod: func(in *DecisionInput) {
				in.TotalWater = 2
				in.LastWater = day(6, 1)
				in.RainDays = []entities.ForecastDay{{Day: day(6, 6), Probability: 80}}
			},
			status: entities.ReducedWatering, amount: 4, day: day(6, 5), policy: entities.AnchorFirst,
		},
		{
			name: "delayed with half the requirement met",
			mod: func(in *DecisionInput) {
				in.TotalWater = 6
				in.LastWater = day(6, 1)
				in.RainDays = []entities.ForecastDay{{Day: day(6, 6), Probability: 80}}
			},
			status: entities.DelayedHalfMet,
		},
		{
			name: "no last water never delays",
			mod: func(in *DecisionInput) {
				in.TotalWater = 1
				in.RainDays = []entities.ForecastDay{{Day: day(6, 6), Probability: 80}}
			},
			status: entities.ReducedWatering, amount: 4.5, day: day(6, 8), policy: entities.AnchorFirst,
		},
		{
			name: "forced run ignores the forecast",
			mod: func(in *DecisionInput) {
				in.TotalWater = 2
				in.ForcedRun = true
				in.RainDays = []entities.ForecastDay{{Day: day(6, 5), Probability: 90}}
			},
			status: entities.ForcedRun, amount: 8, day: day(6, 5), policy: entities.AnchorLast,
		},
		{
			name: "zone without a rate is unavailable",
			mod: func(in *DecisionInput) {
				in.TotalWater = 2
				in.Zone.WateringRate = 0
			},
			status: entities.Unavailable,
		},
		{
			name:   "zero requirement is met",
			mod:    func(in *DecisionInput) { in.Requirement = 0 },
			status: entities.RequirementMet,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := baseInput()
			c.mod(&in)
			d := e.Decide(in)
			if d.Status != c.status {
				t.Fatalf("status = %s, want %s", d.Status, c.status)
			}
			if math.Abs(d.Amount-c.amount) > 1e-9 {
				t.Errorf("amount = %v, want %v", d.Amount, c.amount)
			}
			if d.Amount < 0 {
				t.Errorf("negative amount %v", d.Amount)
			}
			if !c.day.IsZero() && !d.Day.Equal(c.day) {
				t.Errorf("day = %v, want %v", d.Day, c.day)
			}
			if c.status.Runs() && d.Policy != c.policy {
				t.Errorf("policy = %s, want %s", d.Policy, c.policy)
			}
		})
	}
}

func TestDecideDaily(t *testing.T) {
	e := NewEngine(time.UTC, fixedClock(wed))
	z := entities.Zone{ID: 3, WateringRate: 0.1, DailyRequirement: 0.5}

	d := e.DecideDaily(z, 0.2)
	if d.Status != entities.Watering || math.Abs(d.Amount-0.3) > 1e-9 || d.Policy != entities.AnchorLast || !d.Day.Equal(day(6, 5)) {
		t.Fatalf("got %+v", d)
	}
	if d := e.DecideDaily(z, 0.5); d.Status != entities.RequirementMet {
		t.Fatalf("got %+v", d)
	}
	z.WateringRate = 0
	if d := e.DecideDaily(z, 0); d.Status != entities.Unavailable {
		t.Fatalf("got %+v", d)
	}
}

func TestDecisionCandidate(t *testing.T) {
	z := testZone()
	z.MinRun = 20 * time.Minute
	start := day(6, 5).Add(18 * time.Hour)

	c, ok := Decision{ZoneID: 1, Status: entities.Watering, Amount: 8}.Candidate(z, start)
	if !ok || c.Duration != 20*time.Minute || !c.Start.Equal(start) {
		t.Fatalf("got %+v %v", c, ok)
	}
	z.MinRun = 0
	c, _ = Decision{ZoneID: 1, Status: entities.Watering, Amount: 8}.Candidate(z, start)
	if c.Duration != 16*time.Minute {
		t.Fatalf("duration = %v", c.Duration)
	}
	if _, ok := (Decision{ZoneID: 1, Status: entities.Delayed}).Candidate(z, start); ok {
		t.Fatal("delayed zone produced a run")
	}
}
