package irrigation_controller

import (
	"sort"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

type anchorSource interface {
	Resolve(day time.Time, policy entities.AnchorPolicy) (time.Time, error)
}

// ScheduleResolver caps long runs and lays candidates out on a single non-overlapping timeline.
type ScheduleResolver struct {
	anchors anchorSource
	zones   map[int]entities.Zone
	loc     *time.Location
	log     logx.Logger
}

func NewScheduleResolver(anchors anchorSource, zones []entities.Zone, loc *time.Location, log logx.Logger) *ScheduleResolver {
	byID := make(map[int]entities.Zone, len(zones))
	for _, z := range zones {
		byID[z.ID] = z
	}
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleResolver{anchors: anchors, zones: byID, loc: loc, log: log}
}

// Resolve returns the dispatchable schedule and the overflow runs left over from capping.
// The controller holds one program per zone, so overflow runs are reported but not sent.
func (r *ScheduleResolver) Resolve(cands []entities.RunCandidate, period entities.Period, now time.Time) (entities.Schedule, entities.Schedule) {
	checkpoint := period.Checkpoint()
	beforeCheckpoint := now.Before(checkpoint)

	sched := make(entities.Schedule, 0, len(cands))
	var deferred entities.Schedule
	for _, c := range cands {
		z := r.zones[c.ZoneID]
		if z.MaxRun > 0 && c.Duration > z.MaxRun {
			overflow := c.Duration - z.MaxRun
			c.Duration = z.MaxRun
			c.Capped = true

			day := checkpoint
			if !beforeCheckpoint {
				day = entities.Midnight(now, r.loc)
			}
			start, err := r.anchors.Resolve(day, c.Policy)
			if err != nil {
				r.log.Warn("overflow run has no anchor", logx.Int("zone", c.ZoneID), logx.Err(err))
				start = day
			}
			deferred = append(deferred, entities.RunCandidate{ZoneID: c.ZoneID, Start: start, Duration: overflow, Policy: c.Policy, Capped: true})
		}
		sched = append(sched, c)
	}

	sweep(sched)

	if beforeCheckpoint {
		moved := false
		dayAfter := checkpoint.AddDate(0, 0, 1)
		for i := range sched {
			if !sched[i].Capped || sched[i].Start.Before(dayAfter) {
				continue
			}
			start, err := r.anchors.Resolve(checkpoint, sched[i].Policy)
			if err != nil {
				continue
			}
			r.log.Debug("capped run moved to checkpoint", logx.Int("zone", sched[i].ZoneID), logx.Time("start", start))
			sched[i].Start = start
			moved = true
		}
		if moved {
			sweep(sched)
		}
	}

	sort.SliceStable(deferred, func(i, j int) bool { return deferred[i].Start.Before(deferred[j].Start) })
	return sched, deferred
}

// sweep orders runs by start and pushes each one behind any earlier run it collides with.
// Runs keep their arrival order on equal start times.
func sweep(s entities.Schedule) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Start.Before(s[j].Start) })
	for i := 1; i < len(s); i++ {
		for shifted := true; shifted; {
			shifted = false
			for j := 0; j < i; j++ {
				if s[j].Duration <= 0 {
					continue
				}
				if s[i].Start.Before(s[j].End()) && s[j].Start.Before(s[i].End()) || s[i].Start.Equal(s[j].Start) {
					s[i].Start = s[j].End()
					shifted = true
				}
			}
		}
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].Start.Before(s[j].Start) })
}
