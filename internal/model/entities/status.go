package entities

import (
	"fmt"
	"strings"
)

// ZoneStatus is the outcome of a zone's watering decision for one cycle.
type ZoneStatus int

const (
	RequirementMet ZoneStatus = iota
	Watering
	ReducedWatering
	Delayed
	DelayedHalfMet
	Unavailable
	ForcedRun
)

var statusNames = map[ZoneStatus]string{
	RequirementMet:  "requirement_met",
	Watering:        "watering",
	ReducedWatering: "reduced_watering",
	Delayed:         "delayed",
	DelayedHalfMet:  "delayed_half_met",
	Unavailable:     "unavailable",
	ForcedRun:       "forced_run",
}

func (s ZoneStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Runs reports whether the status implies a scheduled run.
func (s ZoneStatus) Runs() bool {
	return s == Watering || s == ReducedWatering || s == ForcedRun
}

func (s ZoneStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ZoneStatus) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for k, v := range statusNames {
		if v == name {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown zone status %q", string(b))
}

// ValveState is the on/off state reported by a controller for a zone.
type ValveState string

const (
	ValveOff ValveState = "off"
	ValveOn  ValveState = "on"
)
