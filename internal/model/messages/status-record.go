package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
)

// StatusRecord is the append-only record written once per cycle.
type StatusRecord struct {
	CycleID   string         `json:"cycle_id"`
	Timestamp time.Time      `json:"timestamp"`
	Enabled   bool           `json:"enabled"`
	Zones     []ZoneReport   `json:"zones"`
	Schedule  []ScheduledRun `json:"schedule"`
	Deferred  []ScheduledRun `json:"deferred,omitempty"`
	Exception string         `json:"exception,omitempty"`
	Fatal     bool           `json:"fatal,omitempty"`
}

type ZoneReport struct {
	ZoneID        int                 `json:"zone_id"`
	Name          string              `json:"name,omitempty"`
	Status        entities.ZoneStatus `json:"status"`
	TotalWater    float64             `json:"total_water"`
	LastWater     time.Time           `json:"last_water"`
	Requirement   float64             `json:"requirement"`
	AmountToWater float64             `json:"amount_to_water"`
}

type ScheduledRun struct {
	ZoneID      int       `json:"zone_id"`
	Start       time.Time `json:"start"`
	DurationSec int64     `json:"duration_sec"`
}

func ScheduledRuns(s entities.Schedule) []ScheduledRun {
	out := make([]ScheduledRun, 0, len(s))
	for _, c := range s {
		out = append(out, ScheduledRun{ZoneID: c.ZoneID, Start: c.Start, DurationSec: int64(c.Duration.Seconds())})
	}
	return out
}

// Summary renders the record as the human readable status line used in logs and notifications.
func (r StatusRecord) Summary() string {
	if !r.Enabled {
		return "Sprinklers currently disabled."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Status at %s:", r.Timestamp.Format("2006-01-02 15:04"))
	for _, z := range r.Zones {
		fmt.Fprintf(&b, " zone %d %s total=%.2f/%.2f", z.ZoneID, z.Status, z.TotalWater, z.Requirement)
		if !z.LastWater.IsZero() {
			fmt.Fprintf(&b, " last=%s", z.LastWater.Format("01/02"))
		}
		b.WriteString(";")
	}
	for _, s := range r.Schedule {
		fmt.Fprintf(&b, " run zone %d at %s for %dm;", s.ZoneID, s.Start.Format("01/02 15:04"), s.DurationSec/60)
	}
	return strings.TrimSuffix(b.String(), ";")
}
