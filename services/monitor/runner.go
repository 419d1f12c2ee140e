// Package monitor drives the time-bounded search-and-book runs. Each
// monitor owns one goroutine that polls the targeted slot finder for its
// members and books the first matching opening.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"courtwatch/clubapi"
	"courtwatch/models"
	"courtwatch/services/availability"
	"courtwatch/services/members"
	"courtwatch/utils"

	"go.uber.org/zap"
)

// SlotFinder is the targeted search the monitor polls each tick.
type SlotFinder interface {
	FindForCombo(ctx context.Context, attrs map[string]string, memberID string, targetDates, targetHours []string) (*models.AvailableSlot, error)
}

// CachePatcher receives best-effort single-slot updates after bookings.
type CachePatcher interface {
	RefreshSingleSlot(date, comboKey, interval string, available int)
}

// fixedTarget is the explicit combination a fixed-session monitor hunts.
type fixedTarget struct {
	level    string
	side     string
	date     string
	hour     string
	autoBook bool
}

// Runner is one monitor's live state. Its fields are mutated by the run
// goroutine and read by API snapshots and stop requests, so everything
// mutable sits behind mu.
type Runner struct {
	id        string
	kind      models.MonitorKind
	memberIDs []string

	targetDates []string
	fixed       *fixedTarget

	duration time.Duration
	interval time.Duration

	finder SlotFinder
	client clubapi.Client
	cache  CachePatcher
	prefs  members.Resolver
	opts   *availability.Options

	events *EventStream
	cancel context.CancelFunc

	mu            sync.Mutex
	status        models.MonitorStatus
	statusMessage string
	stopStatus    models.MonitorStatus
	results       map[string]models.BookingOutcome
	createdAt     time.Time
	finishedAt    *time.Time
}

// Snapshot returns a point-in-time copy safe to serialize.
func (r *Runner) Snapshot() models.Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make(map[string]models.BookingOutcome, len(r.results))
	for k, v := range r.results {
		results[k] = v
	}
	var finished *time.Time
	if r.finishedAt != nil {
		t := *r.finishedAt
		finished = &t
	}
	snap := models.Monitor{
		ID:            r.id,
		Kind:          r.kind,
		Status:        r.status,
		MemberIDs:     append([]string(nil), r.memberIDs...),
		TargetDates:   append([]string(nil), r.targetDates...),
		Results:       results,
		Events:        r.events.History(),
		CreatedAt:     r.createdAt,
		FinishedAt:    finished,
		StatusMessage: r.statusMessage,
	}
	if r.fixed != nil {
		snap.TargetHour = r.fixed.hour
	}
	return snap
}

// Events exposes the live status feed.
func (r *Runner) Events() *EventStream {
	return r.events
}

func (r *Runner) currentStatus() models.MonitorStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// requestStop asks the run goroutine to exit with the given terminal
// status (Stopped for an explicit stop, Disconnected when the driving
// client went away). Takes effect between network calls; the monitor
// exits within at most one check interval.
func (r *Runner) requestStop(terminal models.MonitorStatus) {
	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.status = models.MonitorStopping
	r.stopStatus = terminal
	cancel := r.cancel
	r.mu.Unlock()

	r.events.Emit("info", "stop requested")
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) stopTerminalStatus() models.MonitorStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopStatus != "" {
		return r.stopStatus
	}
	return models.MonitorStopped
}

// finish moves the runner into a terminal state exactly once.
func (r *Runner) finish(status models.MonitorStatus, message string) {
	r.mu.Lock()
	if r.status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.status = status
	r.statusMessage = message
	now := time.Now()
	r.finishedAt = &now
	r.mu.Unlock()

	level := "info"
	if status == models.MonitorError {
		level = "error"
	}
	r.events.Emit(level, "monitor %s: %s", status, message)
	r.events.Close()
}

func (r *Runner) hasResult(memberID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.results[memberID]
	return ok
}

func (r *Runner) setResult(memberID string, outcome models.BookingOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[memberID]; ok {
		return // outcomes are terminal, first writer wins
	}
	r.results[memberID] = outcome
}

func (r *Runner) allResolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results) == len(r.memberIDs)
}

// Run executes the monitor until every member is resolved, the time
// budget expires, or a stop request lands. It is the only goroutine that
// drives state transitions after start.
func (r *Runner) Run(ctx context.Context) {
	logger := utils.GetLogger()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("monitor crashed",
				zap.String("monitor", r.id), zap.Any("panic", rec))
			r.finish(models.MonitorError, fmt.Sprintf("unexpected failure: %v", rec))
		}
	}()

	r.mu.Lock()
	r.status = models.MonitorRunning
	r.mu.Unlock()
	r.events.Emit("info", "monitor started (%s, %d member(s), budget %s, every %s)",
		r.kind, len(r.memberIDs), r.duration, r.interval)

	deadline := time.Now().Add(r.duration)
	budget := time.NewTimer(r.duration)
	defer budget.Stop()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			r.finish(r.stopTerminalStatus(), "stopped before completion")
			return
		}
		if !time.Now().Before(deadline) {
			r.finishNotFound()
			return
		}

		r.tick(ctx)

		if r.allResolved() {
			r.finish(models.MonitorCompleted, "all members resolved")
			return
		}
		if ctx.Err() != nil {
			r.finish(r.stopTerminalStatus(), "stopped before completion")
			return
		}

		select {
		case <-ctx.Done():
			r.finish(r.stopTerminalStatus(), "stopped before completion")
			return
		case <-budget.C:
			r.finishNotFound()
			return
		case <-ticker.C:
		}
	}
}

// finishNotFound closes out the run when the time budget is spent.
// Members still pending get a not-found outcome; that is a normal
// completion, not an error.
func (r *Runner) finishNotFound() {
	for _, memberID := range r.memberIDs {
		if !r.hasResult(memberID) {
			r.setResult(memberID, models.BookingOutcome{
				Success: false,
				Error:   "no matching slot found within the monitor window",
			})
		}
	}
	r.finish(models.MonitorCompleted, "time budget exhausted")
}

// tick tries every still-pending member once. Members are processed in
// creation order, and each member's preferences strictly in priority
// order; the first bookable hit ends that member's tick.
func (r *Runner) tick(ctx context.Context) {
	switch r.kind {
	case models.MonitorKindFixed:
		r.tickFixed(ctx)
	default:
		r.tickRoster(ctx)
	}
}

func (r *Runner) tickRoster(ctx context.Context) {
	for _, memberID := range r.memberIDs {
		if ctx.Err() != nil {
			return
		}
		if r.hasResult(memberID) {
			continue
		}

		prefs, err := r.prefs.Preferences(memberID)
		if err != nil {
			r.events.Emit("warning", "could not load preferences for %s: %v", memberID, err)
			continue
		}

		for rank, pref := range prefs {
			if ctx.Err() != nil {
				return
			}
			dates := r.targetDates
			if len(dates) == 0 {
				dates = pref.Dates
			}

			slot, err := r.finder.FindForCombo(ctx, pref.Attributes, memberID, dates, pref.Hours)
			if errors.Is(err, availability.ErrNoSlot) {
				continue
			}
			if err != nil {
				r.events.Emit("warning", "slot search failed for %s (preference %d): %v",
					memberID, rank+1, err)
				continue
			}
			if r.book(ctx, memberID, slot) {
				break
			}
			// Transient booking failure: member stays pending, next
			// preference gets its chance this tick.
		}
	}
}

func (r *Runner) tickFixed(ctx context.Context) {
	f := r.fixed
	memberID := r.memberIDs[0]
	if r.hasResult(memberID) {
		return
	}

	attrs := map[string]string{"level": f.level}
	if f.side != "" {
		attrs["side"] = f.side
	}
	hours := []string{f.hour}
	if f.hour == "" {
		// No hour pinned: every hour the facility schedules for this
		// level, earliest first (FindForCombo picks the earliest match).
		hours = r.opts.HoursForLevel(f.level)
	}

	slot, err := r.finder.FindForCombo(ctx, attrs, memberID, []string{f.date}, hours)
	if errors.Is(err, availability.ErrNoSlot) {
		return
	}
	if err != nil {
		r.events.Emit("warning", "slot search failed for %s: %v", memberID, err)
		return
	}

	if !f.autoBook {
		r.setResult(memberID, models.BookingOutcome{Success: true, Slot: slot})
		r.events.Emit("info", "found slot %s %s for %s (auto-book off, not booking)",
			slot.Date, slot.Interval, memberID)
		return
	}
	r.book(ctx, memberID, slot)
}

// book attempts the booking and classifies the outcome. It returns true
// when the member is resolved (booked, or terminally rejected as already
// booked) and false on a transient failure worth retrying.
func (r *Runner) book(ctx context.Context, memberID string, slot *models.AvailableSlot) bool {
	conf, err := r.client.CreateBooking(ctx, clubapi.BookingRequest{
		PackageID: slot.PackageID,
		ProductID: slot.ProductID,
		MemberID:  memberID,
		Tags:      slot.Attributes,
		Interval:  slot.Interval,
		Date:      slot.Date,
	})
	if err == nil {
		r.setResult(memberID, models.BookingOutcome{
			Success:    true,
			Voucher:    conf.Voucher,
			AccessCode: conf.AccessCode,
			Slot:       slot,
		})
		r.events.Emit("info", "booked %s %s (%s) for %s, voucher %s",
			slot.Date, slot.Interval, slot.ComboKey(), memberID, conf.Voucher)
		if r.cache != nil {
			r.cache.RefreshSingleSlot(slot.Date, slot.ComboKey(), slot.Interval, slot.Available-1)
		}
		return true
	}

	if clubapi.IsAlreadyBooked(err) {
		r.setResult(memberID, models.BookingOutcome{Success: false, Error: err.Error()})
		r.events.Emit("warning", "%s already has an active booking, giving up on them", memberID)
		return true
	}

	r.events.Emit("warning", "booking %s %s for %s failed: %v",
		slot.Date, slot.Interval, memberID, err)
	utils.GetLogger().Warn("booking attempt failed",
		zap.String("monitor", r.id), zap.String("member", memberID), zap.Error(err))
	return false
}
