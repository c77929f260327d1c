package entities

import (
	"fmt"
	"strings"
	"time"
)

// AnchorPolicy selects among the still-future anchor times of a day.
type AnchorPolicy int

const (
	AnchorFirst AnchorPolicy = iota
	AnchorLast
)

func (p AnchorPolicy) String() string {
	if p == AnchorLast {
		return "last"
	}
	return "first"
}

// RunCandidate is a proposed zone run. Start and Duration are adjusted by schedule resolution.
type RunCandidate struct {
	ZoneID   int           `json:"zone_id"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Policy   AnchorPolicy  `json:"-"`
	Capped   bool          `json:"capped,omitempty"`
}

func (c RunCandidate) End() time.Time { return c.Start.Add(c.Duration) }

func (c RunCandidate) String() string {
	return fmt.Sprintf("zone %d at %s for %s", c.ZoneID, c.Start.Format(time.RFC3339), c.Duration)
}

// Schedule is an ordered timetable of runs for one controller.
type Schedule []RunCandidate

// Overlaps reports whether any two runs share time.
func (s Schedule) Overlaps() bool {
	for i := range s {
		for j := i + 1; j < len(s); j++ {
			if s[i].Start.Before(s[j].End()) && s[j].Start.Before(s[i].End()) {
				return true
			}
		}
	}
	return false
}

func (s Schedule) Find(zoneID int) (RunCandidate, bool) {
	for _, c := range s {
		if c.ZoneID == zoneID {
			return c, true
		}
	}
	return RunCandidate{}, false
}

func (s Schedule) String() string {
	parts := make([]string, 0, len(s))
	for _, c := range s {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "; ")
}
