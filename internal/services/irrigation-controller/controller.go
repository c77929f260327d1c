package irrigation_controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apogeecmb/smartSprinkler/internal/config"
	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/metrics"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/internal/model/messages"
	"github.com/apogeecmb/smartSprinkler/internal/services/aggregator"
	"github.com/apogeecmb/smartSprinkler/internal/services/forecast"
	"github.com/apogeecmb/smartSprinkler/internal/services/notify"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

const noExceptions = "No exceptions occurred."

// ErrCycleInProgress is returned when RunCycle is called while another cycle is running.
var ErrCycleInProgress = errors.New("cycle already in progress")

// ===================== Collaborators =====================

// Notifier posts an event with up to three data values. Delivery is best effort.
type Notifier interface {
	Post(ctx context.Context, event string, data ...string) error
}

// StatusStore appends one record per cycle.
type StatusStore interface {
	Append(ctx context.Context, rec messages.StatusRecord) error
}

// Collaborators are built once at startup. Any of them may be nil except Device.
type Collaborators struct {
	Rainfall aggregator.RainfallSource
	History  aggregator.HistorySource
	Forecast forecast.Source
	Device   DeviceController
	Notifier Notifier
	Store    StatusStore
}

type State string

const (
	StateDisabled    State = "disabled"
	StateIdle        State = "idle"
	StateAggregating State = "aggregating"
	StateDeciding    State = "deciding"
	StateResolving   State = "resolving"
	StateDispatching State = "dispatching"
	StateReporting   State = "reporting"
)

// ===================== Controller =====================

// Controller runs one decision cycle per RunCycle call. Config is reloaded at the start
// of every cycle; collaborators are fixed for the life of the Controller.
type Controller struct {
	deps    Collaborators
	load    func() (*config.Config, error)
	metrics *metrics.Metrics
	log     logx.Logger
	now     func() time.Time

	running sync.Mutex

	mu     sync.RWMutex
	latest *messages.StatusRecord
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Controller) { c.metrics = m } }

func NewController(deps Collaborators, load func() (*config.Config, error), log logx.Logger, opts ...Option) (*Controller, error) {
	if deps.Device == nil {
		return nil, errors.New("device controller is nil")
	}
	if load == nil {
		return nil, errors.New("config loader is nil")
	}
	c := &Controller{
		deps: deps,
		load: load,
		log:  log.With(logx.String("component", "cycle")),
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Latest returns the record of the last finished cycle.
func (c *Controller) Latest() (messages.StatusRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return messages.StatusRecord{}, false
	}
	return *c.latest, true
}

// cycle carries the per-invocation state.
type cycle struct {
	id       string
	cfg      *config.Config
	loc      *time.Location
	now      time.Time
	zones    []entities.Zone
	log      logx.Logger
	rec      *messages.StatusRecord
	problems []error
}

func (cy *cycle) enter(s State) { cy.log.Debug("state", logx.String("state", string(s))) }

func (cy *cycle) degrade(err error) {
	cy.log.Warn("non-fatal problem", logx.Err(err))
	cy.problems = append(cy.problems, err)
}

// RunCycle executes Idle → Aggregating → Deciding → Resolving → Dispatching → Reporting,
// or the Disabled branch. The returned record is also stored and kept as Latest.
func (c *Controller) RunCycle(ctx context.Context) (*messages.StatusRecord, error) {
	if !c.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer c.running.Unlock()

	started := time.Now()
	cy := &cycle{id: uuid.NewString(), now: c.now()}
	cy.log = c.log.With(logx.String("cycle_id", cy.id))
	cy.rec = &messages.StatusRecord{CycleID: cy.id, Timestamp: cy.now, Enabled: true}
	cy.enter(StateIdle)

	cfg, err := c.load()
	if err != nil {
		err = fault.New(fault.Fatal, "config.load", err)
		return c.abort(ctx, cy, err, config.ReportErrorsOnly, started, true)
	}
	cy.cfg = cfg
	cy.zones = cfg.ZoneList()
	cy.loc, err = cfg.Location.Load()
	if err != nil {
		return c.abort(ctx, cy, fault.New(fault.Fatal, "config.timezone", err), cfg.ReportLevel(), started, true)
	}

	if !cfg.IsEnabled() {
		cy.enter(StateDisabled)
		cy.rec.Enabled = false
		if err := c.disableAll(ctx, cy); err != nil {
			// disable-all was just attempted
			return c.abort(ctx, cy, err, cfg.ReportLevel(), started, false)
		}
		c.finish(ctx, cy, started, "disabled")
		return cy.rec, nil
	}

	if err := c.run(ctx, cy); err != nil {
		return c.abort(ctx, cy, err, cfg.ReportLevel(), started, true)
	}
	c.finish(ctx, cy, started, "ok")
	return cy.rec, nil
}

type zoneInput struct {
	total       float64
	lastWater   time.Time
	requirement float64
}

func (c *Controller) run(ctx context.Context, cy *cycle) error {
	cfg := cy.cfg
	period := entities.PeriodContaining(cy.now, cy.loc, cfg.PeriodDays)
	cy.log.Debug("period",
		logx.Time("start", period.Start),
		logx.Time("end", period.End()),
		logx.Time("checkpoint", period.Checkpoint()))

	// Aggregating
	cy.enter(StateAggregating)
	var weekly, daily []entities.Zone
	for _, z := range cy.zones {
		if z.HasDailyOverride() {
			daily = append(daily, z)
		} else {
			weekly = append(weekly, z)
		}
	}
	ledger := aggregator.NewLedger(c.deps.Rainfall, c.deps.History, cfg.MinRainAmount, cy.log)
	inputs := make(map[int]zoneInput, len(cy.zones))

	if len(weekly) > 0 {
		totals, err := ledger.TotalsForPeriod(ctx, weekly, period.Start, cy.now)
		if err := c.classify(cy, "ledger", err); err != nil {
			return err
		}
		adj, err := ledger.Rollover(ctx, weekly, period, aggregator.RolloverMode{Excess: cfg.RolloverExcess, Deficit: cfg.RolloverDeficit})
		if err := c.classify(cy, "rollover", err); err != nil {
			return err
		}
		for _, z := range weekly {
			t, a := totals[z.ID], adj[z.ID]
			inputs[z.ID] = zoneInput{
				total:       t.Total + a.Credit,
				lastWater:   latest(t.LastWater, a.LastWater),
				requirement: z.WeeklyRequirement + a.Extra,
			}
		}
	}
	if len(daily) > 0 {
		today := entities.Midnight(cy.now, cy.loc)
		totals, err := ledger.TotalsForPeriod(ctx, daily, today, cy.now)
		if err := c.classify(cy, "ledger", err); err != nil {
			return err
		}
		for _, z := range daily {
			t := totals[z.ID]
			inputs[z.ID] = zoneInput{total: t.Total, lastWater: t.LastWater, requirement: z.DailyRequirement}
		}
	}

	advisor := forecast.NewAdvisor(c.deps.Forecast, cfg.Location, cy.log)
	fc, err := advisor.Forecast(ctx, cy.now, period.End())
	if err := c.classify(cy, "forecast", err); err != nil {
		return err
	}
	rainDays := forecast.RainDays(fc, cfg.MinPrecipProbability)

	// Deciding
	cy.enter(StateDeciding)
	anchors, bad := ParseAnchors(cfg.RunTimes)
	for _, e := range bad {
		cy.log.Warn("run time ignored", logx.Err(e))
	}
	clock := func() time.Time { return cy.now }
	anchorRes := NewAnchorResolver(anchors, cfg.Location, cy.loc, clock)
	engine := NewEngine(cy.loc, clock)
	forced := cy.now.After(period.LastDay())

	cands := make([]entities.RunCandidate, 0, len(cy.zones))
	for _, z := range cy.zones {
		in := inputs[z.ID]
		var d Decision
		if z.HasDailyOverride() {
			d = engine.DecideDaily(z, in.total)
		} else {
			d = engine.Decide(DecisionInput{
				Zone:                z,
				TotalWater:          in.total,
				LastWater:           in.lastWater,
				Requirement:         in.requirement,
				RainDays:            rainDays,
				ForcedRun:           forced,
				MaxDaysBetweenWater: cfg.MaxDaysBetweenWater,
				PeriodEnd:           period.End(),
			})
		}
		cy.log.Info("zone decided",
			logx.Int("zone", z.ID),
			logx.String("status", d.Status.String()),
			logx.Float64("total", in.total),
			logx.Float64("requirement", in.requirement),
			logx.Float64("amount", d.Amount))

		cy.rec.Zones = append(cy.rec.Zones, messages.ZoneReport{
			ZoneID:        z.ID,
			Name:          z.Name,
			Status:        d.Status,
			TotalWater:    in.total,
			LastWater:     in.lastWater,
			Requirement:   in.requirement,
			AmountToWater: d.Amount,
		})
		c.metrics.Zone(z.ID, int(d.Status), in.total)

		if !d.Status.Runs() || d.Amount <= 0 {
			continue
		}
		start, err := anchorRes.Resolve(d.Day, d.Policy)
		if err != nil {
			return fault.New(fault.Fatal, "anchor.resolve", err)
		}
		if cand, ok := d.Candidate(z, start); ok {
			cands = append(cands, cand)
		}
	}

	// Resolving
	cy.enter(StateResolving)
	sched, deferred := NewScheduleResolver(anchorRes, cy.zones, cy.loc, cy.log).Resolve(cands, period, cy.now)
	cy.rec.Schedule = messages.ScheduledRuns(sched)
	if len(deferred) > 0 {
		cy.rec.Deferred = messages.ScheduledRuns(deferred)
	}

	// Dispatching
	cy.enter(StateDispatching)
	for _, z := range cy.zones {
		if run, ok := sched.Find(z.ID); ok {
			if err := c.deps.Device.UpdateProgram(ctx, z.ID, run.Start, run.Duration); err != nil {
				c.metrics.CollaboratorError("controller")
				return err
			}
			continue
		}
		if err := c.deps.Device.DisableProgram(ctx, z.ID); err != nil {
			c.metrics.CollaboratorError("controller")
			return err
		}
	}
	c.metrics.Scheduled(len(sched))
	return nil
}

// classify keeps fatal errors and records the rest as degraded input.
func (c *Controller) classify(cy *cycle, name string, err error) error {
	if err == nil {
		return nil
	}
	c.metrics.CollaboratorError(name)
	if fault.IsFatal(err) {
		return err
	}
	cy.degrade(err)
	return nil
}

func (c *Controller) disableAll(ctx context.Context, cy *cycle) error {
	var errs []error
	for _, z := range cy.zones {
		if err := c.deps.Device.DisableProgram(ctx, z.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		c.metrics.CollaboratorError("controller")
		return fault.New(fault.Fatal, "controller.disable_all", errors.Join(errs...))
	}
	return nil
}

// abort handles a fatal error: optional best-effort disable-all, record, error notification.
// The error notification carries the cycle id.
func (c *Controller) abort(ctx context.Context, cy *cycle, err error, level config.ReportLevel, started time.Time, disable bool) (*messages.StatusRecord, error) {
	cy.log.Error("cycle aborted", logx.Err(err))
	if trace := fault.TraceOf(err); trace != "" {
		cy.log.Debug("fatal trace", logx.String("trace", trace))
	}
	if disable && len(cy.zones) > 0 {
		if derr := c.disableAll(ctx, cy); derr != nil {
			cy.log.Error("disable-all after failure", logx.Err(derr))
		}
	}
	cy.rec.Fatal = true
	cy.rec.Exception = err.Error()
	cy.rec.Schedule = nil
	cy.rec.Deferred = nil

	c.store(ctx, cy)
	if level != config.ReportDisabled {
		c.post(ctx, cy, messages.EventError, err.Error(), "cycle "+cy.id)
	}
	c.metrics.CycleDone("fatal", time.Since(started))
	c.setLatest(cy.rec)
	return cy.rec, err
}

func (c *Controller) finish(ctx context.Context, cy *cycle, started time.Time, outcome string) {
	cy.enter(StateReporting)
	if len(cy.problems) > 0 {
		cy.rec.Exception = errors.Join(cy.problems...).Error()
		outcome = "degraded"
	}
	c.store(ctx, cy)

	summary := cy.rec.Summary()
	cy.log.Info(summary)
	switch cy.cfg.ReportLevel() {
	case config.ReportErrorsAndStatus:
		exc := cy.rec.Exception
		if exc == "" {
			exc = noExceptions
		}
		c.post(ctx, cy, messages.EventStatus, summary, exc)
	case config.ReportErrorsOnly:
		if cy.rec.Exception != "" {
			c.post(ctx, cy, messages.EventStatus, summary, cy.rec.Exception)
		}
	}
	c.metrics.CycleDone(outcome, time.Since(started))
	c.setLatest(cy.rec)
}

func (c *Controller) store(ctx context.Context, cy *cycle) {
	if c.deps.Store == nil {
		return
	}
	if err := c.deps.Store.Append(ctx, *cy.rec); err != nil {
		c.metrics.CollaboratorError("status_store")
		cy.log.Warn("status record not stored", logx.Err(err))
	}
}

func (c *Controller) post(ctx context.Context, cy *cycle, event string, data ...string) {
	if c.deps.Notifier == nil {
		return
	}
	if err := c.deps.Notifier.Post(ctx, event, data...); err != nil {
		if errors.Is(err, notify.ErrDuplicate) {
			cy.log.Debug("notification suppressed as duplicate", logx.String("event", event))
			return
		}
		c.metrics.CollaboratorError("notifier")
		cy.log.Warn("notification failed", logx.String("event", event), logx.Err(err))
	}
}

func (c *Controller) setLatest(rec *messages.StatusRecord) {
	c.mu.Lock()
	c.latest = rec
	c.mu.Unlock()
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
