package entities

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRunLength(t *testing.T) {
	z := Zone{ID: 1, WateringRate: 0.02, MinRun: 5 * time.Minute}
	if got := z.RunLength(0.5); got != 25*time.Minute {
		t.Fatalf("RunLength(0.5) = %s, want 25m", got)
	}
	if got := z.RunLength(0.01); got != 5*time.Minute {
		t.Fatalf("short run not floored to MinRun: %s", got)
	}
	if got := (Zone{}).RunLength(1); got != 0 {
		t.Fatalf("zero rate must not run, got %s", got)
	}
	if v := z.Volume(25 * time.Minute); v < 0.4999 || v > 0.5001 {
		t.Fatalf("Volume = %f", v)
	}
}

func TestScheduleOverlaps(t *testing.T) {
	t0 := time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC)
	ok := Schedule{
		{ZoneID: 1, Start: t0, Duration: 10 * time.Minute},
		{ZoneID: 2, Start: t0.Add(10 * time.Minute), Duration: 5 * time.Minute},
	}
	if ok.Overlaps() {
		t.Fatal("back-to-back runs reported as overlapping")
	}
	bad := append(Schedule{}, ok...)
	bad[1].Start = t0.Add(9 * time.Minute)
	if !bad.Overlaps() {
		t.Fatal("overlap not detected")
	}
	if _, found := ok.Find(2); !found {
		t.Fatal("Find(2) failed")
	}
}

func TestZoneStatusText(t *testing.T) {
	b, err := json.Marshal(map[string]ZoneStatus{"s": DelayedHalfMet})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"s":"delayed_half_met"}` {
		t.Fatalf("marshal = %s", b)
	}
	var back map[string]ZoneStatus
	if err := json.Unmarshal(b, &back); err != nil || back["s"] != DelayedHalfMet {
		t.Fatalf("unmarshal = %v, %v", back, err)
	}
	if !ForcedRun.Runs() || Delayed.Runs() {
		t.Fatal("Runs() mismatch")
	}
}

func TestPeriodContaining(t *testing.T) {
	loc := time.UTC
	// Wednesday 2024-06-05
	p := PeriodContaining(time.Date(2024, 6, 5, 14, 0, 0, 0, loc), loc, 7)
	if want := time.Date(2024, 6, 2, 0, 0, 0, 0, loc); !p.Start.Equal(want) {
		t.Fatalf("start = %s, want %s (Sunday)", p.Start, want)
	}
	if want := time.Date(2024, 6, 8, 23, 59, 30, 0, loc); !p.End().Equal(want) {
		t.Fatalf("end = %s", p.End())
	}
	if want := time.Date(2024, 6, 8, 0, 0, 0, 0, loc); !p.LastDay().Equal(want) {
		t.Fatalf("last day = %s", p.LastDay())
	}
	if want := time.Date(2024, 6, 5, 0, 0, 0, 0, loc); !p.Checkpoint().Equal(want) {
		t.Fatalf("checkpoint = %s", p.Checkpoint())
	}
	if prev := p.Previous(); !prev.Start.Equal(time.Date(2024, 5, 26, 0, 0, 0, 0, loc)) {
		t.Fatalf("previous = %s", prev.Start)
	}

	// a Sunday belongs to the period it starts
	sun := PeriodContaining(time.Date(2024, 6, 9, 0, 0, 1, 0, loc), loc, 7)
	if !sun.Start.Equal(time.Date(2024, 6, 9, 0, 0, 0, 0, loc)) {
		t.Fatalf("sunday start = %s", sun.Start)
	}
}
