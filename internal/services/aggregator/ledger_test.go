package aggregator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

type fakeRain struct {
	byStart map[time.Time]float64
	last    time.Time
	err     error
	calls   int
}

func (f *fakeRain) Rainfall(_ context.Context, start, _ time.Time, _ float64) (float64, time.Time, error) {
	f.calls++
	if f.err != nil {
		return 0, time.Time{}, f.err
	}
	return f.byStart[start], f.last, nil
}

type fakeHistory struct {
	byStart map[time.Time]map[int]entities.RunHistory
	err     error
	calls   int
}

func (f *fakeHistory) RunHistory(_ context.Context, _ []int, start, _ time.Time) (map[int]entities.RunHistory, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byStart[start], nil
}

var (
	week   = entities.PeriodContaining(time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC), time.UTC, 7)
	zone1  = entities.Zone{ID: 1, WateringRate: 0.02, WeeklyRequirement: 1.0}
	zone2  = entities.Zone{ID: 2, WateringRate: 0.01, WeeklyRequirement: 0.5}
	approx = func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
)

func TestTotalsForPeriod(t *testing.T) {
	rainDay := week.Start.AddDate(0, 0, 1)
	lastRun := week.Start.AddDate(0, 0, 2).Add(6 * time.Hour)
	rain := &fakeRain{byStart: map[time.Time]float64{week.Start: 0.3}, last: rainDay}
	hist := &fakeHistory{byStart: map[time.Time]map[int]entities.RunHistory{
		week.Start: {1: {RuntimeSeconds: 600, LastRun: lastRun}},
	}}
	l := NewLedger(rain, hist, 0.05, logx.Nop())

	got, err := l.TotalsForPeriod(context.Background(), []entities.Zone{zone1, zone2}, week.Start, week.End())
	if err != nil {
		t.Fatal(err)
	}
	if rain.calls != 1 || hist.calls != 1 {
		t.Fatalf("rain calls = %d, history calls = %d; want one each", rain.calls, hist.calls)
	}
	z1 := got[1]
	if !approx(z1.Irrigation, 0.2) || !approx(z1.Total, 0.5) || !z1.LastWater.Equal(lastRun) {
		t.Fatalf("zone 1 totals = %+v", z1)
	}
	z2 := got[2]
	if !approx(z2.Total, 0.3) || !z2.LastWater.Equal(rainDay) {
		t.Fatalf("zone 2 totals = %+v", z2)
	}
}

func TestNegativeRainfallCoercedToZero(t *testing.T) {
	rain := &fakeRain{byStart: map[time.Time]float64{week.Start: -1}}
	l := NewLedger(rain, nil, 0, logx.Nop())
	got, err := l.TotalsForPeriod(context.Background(), []entities.Zone{zone1}, week.Start, week.End())
	if err != nil {
		t.Fatal(err)
	}
	if got[1].Total != 0 || got[1].Rainfall != 0 {
		t.Fatalf("totals = %+v", got[1])
	}
}

func TestHistoryFailureDegrades(t *testing.T) {
	rain := &fakeRain{byStart: map[time.Time]float64{week.Start: 0.2}}
	hist := &fakeHistory{err: errors.New("controller busy")}
	l := NewLedger(rain, hist, 0, logx.Nop())
	got, err := l.TotalsForPeriod(context.Background(), []entities.Zone{zone1}, week.Start, week.End())
	if err == nil || fault.KindOf(err) != fault.Recoverable {
		t.Fatalf("err = %v, want recoverable", err)
	}
	if !approx(got[1].Total, 0.2) || got[1].Irrigation != 0 {
		t.Fatalf("totals = %+v", got[1])
	}
}

func TestRainfailureIsFatal(t *testing.T) {
	l := NewLedger(&fakeRain{err: errors.New("database is locked")}, nil, 0, logx.Nop())
	_, err := l.TotalsForPeriod(context.Background(), []entities.Zone{zone1}, week.Start, week.End())
	if !fault.IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
}

func TestRollover(t *testing.T) {
	prev := week.Previous()
	older := prev.Previous()

	cases := []struct {
		name        string
		mode        RolloverMode
		prev, older float64
		credit      float64
		extra       float64
	}{
		{"disabled", RolloverMode{}, 1.5, 0, 0, 0},
		{"excess only", RolloverMode{Excess: true}, 1.5, 0, 0.5, 0},
		{"excess ignores deficit", RolloverMode{Excess: true}, 0.4, 0, 0, 0},
		{"deficit only", RolloverMode{Deficit: true}, 0.4, 0, 0, 0.6},
		{"both averages two periods", RolloverMode{Excess: true, Deficit: true}, 1.5, 0.5, 0, 0},
		{"both at requirement is neutral", RolloverMode{Excess: true, Deficit: true}, 1.0, 1.0, 0, 0},
		{"both with shared deficit", RolloverMode{Excess: true, Deficit: true}, 0.6, 0.8, 0, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rain := &fakeRain{byStart: map[time.Time]float64{prev.Start: tc.prev, older.Start: tc.older}}
			l := NewLedger(rain, nil, 0, logx.Nop())
			adj, err := l.Rollover(context.Background(), []entities.Zone{zone1}, week, tc.mode)
			if err != nil {
				t.Fatal(err)
			}
			a := adj[1]
			if !approx(a.Credit, tc.credit) || !approx(a.Extra, tc.extra) {
				t.Fatalf("adjustment = %+v, want credit %v extra %v", a, tc.credit, tc.extra)
			}
			wantCalls := 1
			if tc.mode.Excess && tc.mode.Deficit {
				wantCalls = 2
			}
			if rain.calls != wantCalls {
				t.Fatalf("rain calls = %d, want %d", rain.calls, wantCalls)
			}
		})
	}
}

func TestRolloverSkipsDailyOverride(t *testing.T) {
	daily := entities.Zone{ID: 9, WateringRate: 0.01, DailyRequirement: 0.1}
	rain := &fakeRain{}
	l := NewLedger(rain, nil, 0, logx.Nop())
	adj, err := l.Rollover(context.Background(), []entities.Zone{daily}, week, RolloverMode{Excess: true, Deficit: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(adj) != 0 || rain.calls != 0 {
		t.Fatalf("daily-override zone took part in rollover: %v calls=%d", adj, rain.calls)
	}
}
