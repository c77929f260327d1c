package entities

import "time"

// epochSunday is the reference Sunday periods are counted from.
var epochSunday = time.Date(1970, 1, 4, 0, 0, 0, 0, time.UTC)

// Period is one scheduling period (a week by default, starting Sunday 00:00 local).
type Period struct {
	Start time.Time
	Days  int
}

// PeriodContaining returns the period holding t. Periods start at local midnight
// and are aligned on Sundays.
func PeriodContaining(t time.Time, loc *time.Location, days int) Period {
	if days <= 0 {
		days = 7
	}
	lt := t.In(loc)
	civil := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
	elapsed := int(civil.Sub(epochSunday).Hours() / 24)
	offset := ((elapsed % days) + days) % days
	start := time.Date(lt.Year(), lt.Month(), lt.Day()-offset, 0, 0, 0, 0, loc)
	return Period{Start: start, Days: days}
}

// End is 30 seconds before the next period begins so it stays inside this one.
func (p Period) End() time.Time { return p.Start.AddDate(0, 0, p.Days).Add(-30 * time.Second) }

// LastDay is the start of the final day of the period.
func (p Period) LastDay() time.Time { return p.Start.AddDate(0, 0, p.Days-1) }

// Checkpoint is the midnight of the middle day, used to split long runs.
func (p Period) Checkpoint() time.Time { return p.Start.AddDate(0, 0, p.Days/2) }

func (p Period) Previous() Period { return Period{Start: p.Start.AddDate(0, 0, -p.Days), Days: p.Days} }

func (p Period) Contains(t time.Time) bool { return !t.Before(p.Start) && !t.After(p.End()) }

// Midnight returns local midnight of t's day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
