package device

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
	"github.com/apogeecmb/smartSprinkler/pkg/rabbitmq"
)

type PublisherFactory func(topic string) rabbitmq.IPublisher

// Program is the single one-shot program a controller keeps per zone.
type Program struct {
	ID       string        `json:"id"`
	ZoneID   int           `json:"zone_id"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Enabled  bool          `json:"enabled"`
	Fired    bool          `json:"fired"`
}

// Run is an entry of the controller's run log.
type Run struct {
	ZoneID   int
	Start    time.Time
	Duration time.Duration
}

func (r Run) End() time.Time { return r.Start.Add(r.Duration) }

// Simulator behaves like a sprinkler controller: programs fire once at their start time,
// runs are logged and valve changes are published over MQTT.
type Simulator struct {
	mu       sync.Mutex
	programs map[int]Program
	runs     []Run
	open     map[int]time.Time // zone -> valve close time

	makePublisher PublisherFactory
	topicTemplate string // e.g. "sprinkler/zone/{zone}/state"
	log           logx.Logger
}

func NewSimulator(factory PublisherFactory, topicTemplate string, log logx.Logger) *Simulator {
	if strings.TrimSpace(topicTemplate) == "" {
		topicTemplate = "sprinkler/zone/{zone}/state"
	}
	return &Simulator{
		programs:      make(map[int]Program),
		open:          make(map[int]time.Time),
		makePublisher: factory,
		topicTemplate: topicTemplate,
		log:           log.With(logx.String("component", "simulator")),
	}
}

// UpdateProgram replaces the zone's program. Sending the same program again leaves
// the controller unchanged, including its id.
func (s *Simulator) UpdateProgram(zoneID int, start time.Time, d time.Duration) Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.programs[zoneID]; ok && p.Enabled && p.Start.Equal(start) && p.Duration == d {
		return p
	}
	p := Program{ID: uuid.NewString(), ZoneID: zoneID, Start: start, Duration: d, Enabled: true}
	s.programs[zoneID] = p
	s.log.Info("program set", logx.Int("zone", zoneID), logx.Time("start", start), logx.Duration("duration", d))
	return p
}

// DisableProgram turns the zone's program off. It reports whether anything changed.
func (s *Simulator) DisableProgram(zoneID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[zoneID]
	if !ok || !p.Enabled {
		return false
	}
	p.Enabled = false
	s.programs[zoneID] = p
	s.log.Debug("program disabled", logx.Int("zone", zoneID))
	return true
}

func (s *Simulator) Program(zoneID int) (Program, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[zoneID]
	return p, ok
}

// Tick fires due programs and closes finished runs.
func (s *Simulator) Tick(now time.Time) {
	var events []messages.StateChangeEvent

	s.mu.Lock()
	for zone, until := range s.open {
		if !now.Before(until) {
			delete(s.open, zone)
			events = append(events, messages.StateChangeEvent{ZoneID: zone, NewState: entities.ValveOff, Timestamp: now})
		}
	}
	for zone, p := range s.programs {
		if !p.Enabled || p.Fired || now.Before(p.Start) {
			continue
		}
		p.Fired = true
		s.programs[zone] = p
		s.runs = append(s.runs, Run{ZoneID: zone, Start: p.Start, Duration: p.Duration})
		s.open[zone] = p.Start.Add(p.Duration)
		events = append(events, messages.StateChangeEvent{ZoneID: zone, NewState: entities.ValveOn, Duration: p.Duration, Timestamp: now})
	}
	s.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].ZoneID < events[j].ZoneID })
	for _, e := range events {
		s.publish(e)
	}
}

func (s *Simulator) publish(e messages.StateChangeEvent) {
	if s.makePublisher == nil {
		return
	}
	topic := strings.ReplaceAll(s.topicTemplate, "{zone}", strconv.Itoa(e.ZoneID))
	if err := s.makePublisher(topic).PublishToQos(topic, 1, false, e); err != nil {
		s.log.Warn("state change not published", logx.Int("zone", e.ZoneID), logx.Err(err))
	}
}

// History sums the runs that started strictly inside (start, end).
func (s *Simulator) History(zoneIDs []int, start, end time.Time) map[int]entities.RunHistory {
	want := make(map[int]bool, len(zoneIDs))
	for _, id := range zoneIDs {
		want[id] = true
	}
	out := make(map[int]entities.RunHistory, len(zoneIDs))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if len(want) > 0 && !want[r.ZoneID] {
			continue
		}
		if !r.Start.After(start) || !r.Start.Before(end) {
			continue
		}
		h := out[r.ZoneID]
		h.RuntimeSeconds += r.Duration.Seconds()
		if r.Start.After(h.LastRun) {
			h.LastRun = r.Start
		}
		out[r.ZoneID] = h
	}
	return out
}

// Run ticks every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Tick(now)
		}
	}
}
