package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"courtwatch/clubapi"
	"courtwatch/models"
	"courtwatch/services/availability"
	"courtwatch/services/members"
	"courtwatch/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCheckInterval applies when a request leaves the poll cadence unset.
const DefaultCheckInterval = 30 * time.Second

// Deps bundles the collaborators every monitor needs.
type Deps struct {
	Finder SlotFinder
	Client clubapi.Client
	Cache  CachePatcher
	Prefs  members.Resolver
	Opts   *availability.Options
}

// Registry owns every monitor. It is the single structure touched from
// multiple goroutines (API calls and the monitors themselves), so all
// access goes through its mutex; there is no module-global state.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*Runner
	deps     Deps
}

// NewRegistry builds an empty registry around the given collaborators.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		monitors: make(map[string]*Runner),
		deps:     deps,
	}
}

// CreateRoster validates and starts a preference-driven monitor. Invalid
// input returns a *ValidationError synchronously; no monitor is created
// and no tick runs.
func (g *Registry) CreateRoster(req models.RosterMonitorRequest) (models.Monitor, error) {
	if len(req.MemberIDs) == 0 {
		return models.Monitor{}, validationErrorf("at least one member is required")
	}
	for _, id := range req.MemberIDs {
		prefs, err := g.deps.Prefs.Preferences(id)
		if err != nil {
			return models.Monitor{}, validationErrorf("member %s: %v", id, err)
		}
		if len(prefs) == 0 {
			return models.Monitor{}, validationErrorf("member %s has no session preferences", id)
		}
	}
	for _, d := range req.TargetDates {
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			return models.Monitor{}, validationErrorf("invalid target date %q", d)
		}
	}

	r := g.newRunner(models.MonitorKindRoster, req.MemberIDs, req.DurationMinutes, req.CheckIntervalSeconds)
	r.targetDates = append([]string(nil), req.TargetDates...)
	return g.start(r), nil
}

// CreateFixed validates and starts a fixed-session monitor for one member
// and one explicit combination.
func (g *Registry) CreateFixed(req models.FixedMonitorRequest) (models.Monitor, error) {
	if req.MemberID == "" {
		return models.Monitor{}, validationErrorf("member is required")
	}
	if !g.deps.Opts.ValidLevel(req.Level) {
		return models.Monitor{}, validationErrorf("unknown level %q", req.Level)
	}
	if req.Side != "" && !contains(g.deps.Opts.Sides(), req.Side) {
		return models.Monitor{}, validationErrorf("unknown side %q", req.Side)
	}
	if _, err := time.Parse(models.DateLayout, req.TargetDate); err != nil {
		return models.Monitor{}, validationErrorf("invalid target date %q", req.TargetDate)
	}
	if req.TargetHour != "" && !g.deps.Opts.ValidHour(req.Level, req.TargetHour) {
		return models.Monitor{}, validationErrorf("hour %s is not scheduled for level %s", req.TargetHour, req.Level)
	}

	r := g.newRunner(models.MonitorKindFixed, []string{req.MemberID}, req.DurationMinutes, req.CheckIntervalSeconds)
	r.fixed = &fixedTarget{
		level:    req.Level,
		side:     req.Side,
		date:     req.TargetDate,
		hour:     req.TargetHour,
		autoBook: req.AutoBook,
	}
	r.targetDates = []string{req.TargetDate}
	return g.start(r), nil
}

func (g *Registry) newRunner(kind models.MonitorKind, memberIDs []string, durationMinutes, checkIntervalSeconds int) *Runner {
	interval := time.Duration(checkIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Runner{
		id:        uuid.New().String(),
		kind:      kind,
		memberIDs: append([]string(nil), memberIDs...),
		duration:  time.Duration(durationMinutes) * time.Minute,
		interval:  interval,
		finder:    g.deps.Finder,
		client:    g.deps.Client,
		cache:     g.deps.Cache,
		prefs:     g.deps.Prefs,
		opts:      g.deps.Opts,
		events:    newEventStream(),
		status:    models.MonitorPending,
		results:   make(map[string]models.BookingOutcome),
		createdAt: time.Now(),
	}
}

// start registers the runner and launches its goroutine.
func (g *Registry) start(r *Runner) models.Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	g.mu.Lock()
	g.monitors[r.id] = r
	g.mu.Unlock()

	utils.GetLogger().Info("monitor created",
		zap.String("monitor", r.id), zap.String("kind", string(r.kind)),
		zap.Strings("members", r.memberIDs))
	go r.Run(ctx)
	return r.Snapshot()
}

func (g *Registry) runner(id string) (*Runner, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.monitors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMonitorNotFound, id)
	}
	return r, nil
}

// Get returns a snapshot of one monitor.
func (g *Registry) Get(id string) (models.Monitor, error) {
	r, err := g.runner(id)
	if err != nil {
		return models.Monitor{}, err
	}
	return r.Snapshot(), nil
}

// Events returns the live status feed of one monitor.
func (g *Registry) Events(id string) (*EventStream, error) {
	r, err := g.runner(id)
	if err != nil {
		return nil, err
	}
	return r.Events(), nil
}

// List returns snapshots of every monitor, oldest first.
func (g *Registry) List() []models.Monitor {
	g.mu.Lock()
	runners := make([]*Runner, 0, len(g.monitors))
	for _, r := range g.monitors {
		runners = append(runners, r)
	}
	g.mu.Unlock()

	out := make([]models.Monitor, 0, len(runners))
	for _, r := range runners {
		out = append(out, r.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stop requests a graceful stop. The monitor reaches Stopped within at
// most one check interval.
func (g *Registry) Stop(id string) error {
	r, err := g.runner(id)
	if err != nil {
		return err
	}
	r.requestStop(models.MonitorStopped)
	return nil
}

// Disconnect ends a monitor whose driving client went away. Same shutdown
// path as Stop, different terminal status so the record tells the story.
func (g *Registry) Disconnect(id string) error {
	r, err := g.runner(id)
	if err != nil {
		return err
	}
	r.requestStop(models.MonitorDisconnected)
	return nil
}

// Cleanup drops terminal monitors that finished more than maxAge ago and
// returns how many were evicted. Live monitors are never touched.
func (g *Registry) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	g.mu.Lock()
	defer g.mu.Unlock()
	evicted := 0
	for id, r := range g.monitors {
		snap := r.Snapshot()
		if !snap.Status.Terminal() || snap.FinishedAt == nil {
			continue
		}
		if snap.FinishedAt.Before(cutoff) {
			delete(g.monitors, id)
			evicted++
		}
	}
	if evicted > 0 {
		utils.GetLogger().Info("monitor cleanup", zap.Int("evicted", evicted))
	}
	return evicted
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
