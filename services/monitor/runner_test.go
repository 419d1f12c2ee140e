package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"courtwatch/clubapi"
	"courtwatch/models"
	"courtwatch/services/availability"
	"courtwatch/services/members"
)

// searchCall records one FindForCombo invocation.
type searchCall struct {
	memberID string
	combo    string
	hours    []string
	tick     int
}

// scriptFinder answers from a per-member script and records call order.
type scriptFinder struct {
	mu    sync.Mutex
	calls []searchCall
	ticks int
	// available maps comboKey -> slot, optionally gated by sinceTick.
	available map[string]*models.AvailableSlot
	sinceTick map[string]int
	err       error
}

func (f *scriptFinder) FindForCombo(_ context.Context, attrs map[string]string, memberID string, _, targetHours []string) (*models.AvailableSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := models.ComboKey(attrs)
	f.calls = append(f.calls, searchCall{
		memberID: memberID,
		combo:    key,
		hours:    append([]string(nil), targetHours...),
		tick:     f.ticks,
	})
	if f.err != nil {
		return nil, f.err
	}
	slot, ok := f.available[key]
	if !ok {
		return nil, availability.ErrNoSlot
	}
	if since, gated := f.sinceTick[key]; gated && f.ticks < since {
		return nil, availability.ErrNoSlot
	}
	return slot, nil
}

func (f *scriptFinder) bumpTick() {
	f.mu.Lock()
	f.ticks++
	f.mu.Unlock()
}

func (f *scriptFinder) callLog() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

// bookingClient scripts CreateBooking and records every request.
type bookingClient struct {
	mu       sync.Mutex
	created  []clubapi.BookingRequest
	createFn func(clubapi.BookingRequest) (clubapi.BookingConfirmation, error)
}

func (c *bookingClient) CreateBooking(_ context.Context, req clubapi.BookingRequest) (clubapi.BookingConfirmation, error) {
	c.mu.Lock()
	c.created = append(c.created, req)
	fn := c.createFn
	c.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return clubapi.BookingConfirmation{Voucher: "V-" + req.MemberID, AccessCode: "A-" + req.MemberID}, nil
}

func (c *bookingClient) createdCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.created)
}

func (c *bookingClient) AvailableDates(context.Context, map[string]string) ([]string, error) {
	return nil, nil
}
func (c *bookingClient) Intervals(context.Context, string, map[string]string, string) ([]clubapi.IntervalGroup, error) {
	return nil, nil
}
func (c *bookingClient) CancelBooking(context.Context, string) error { return nil }
func (c *bookingClient) ListBookings(context.Context, string) ([]clubapi.Booking, error) {
	return nil, nil
}

func slotFor(combo map[string]string, date, interval string) *models.AvailableSlot {
	return &models.AvailableSlot{
		Date:       date,
		Interval:   interval,
		Attributes: combo,
		Available:  1,
		Max:        4,
		PackageID:  "pkg",
		ProductID:  "prod",
	}
}

func rosterWith(prefsByMember map[string][]models.SessionPreference) *members.Store {
	var roster []models.Member
	for id, prefs := range prefsByMember {
		roster = append(roster, models.Member{ID: id, Name: id, Preferences: prefs})
	}
	return members.NewStoreFromRoster(roster)
}

func newTestRunner(kind models.MonitorKind, memberIDs []string, duration, interval time.Duration,
	finder SlotFinder, client clubapi.Client, prefs members.Resolver) *Runner {
	return &Runner{
		id:        "test-monitor",
		kind:      kind,
		memberIDs: memberIDs,
		duration:  duration,
		interval:  interval,
		finder:    finder,
		client:    client,
		prefs:     prefs,
		opts:      availability.DefaultOptions(),
		events:    newEventStream(),
		status:    models.MonitorPending,
		results:   make(map[string]models.BookingOutcome),
		createdAt: time.Now(),
	}
}

func waitTerminal(t *testing.T, r *Runner, within time.Duration) models.Monitor {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		snap := r.Snapshot()
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("monitor did not reach a terminal state within %s (status %s)", within, r.currentStatus())
	return models.Monitor{}
}

func TestRunnerBooksLowerPreferenceOnlyAfterHigherMisses(t *testing.T) {
	prefA := models.SessionPreference{Attributes: map[string]string{"level": "advanced", "side": "left"}}
	prefB := models.SessionPreference{Attributes: map[string]string{"level": "beginner", "side": "right"}}
	comboA := models.ComboKey(prefA.Attributes)
	comboB := models.ComboKey(prefB.Attributes)

	finder := &scriptFinder{
		available: map[string]*models.AvailableSlot{
			comboB: slotFor(prefB.Attributes, "2026-09-05", "10:30"),
		},
	}
	client := &bookingClient{}
	prefs := rosterWith(map[string][]models.SessionPreference{
		"m1": {prefA, prefB},
	})

	r := newTestRunner(models.MonitorKindRoster, []string{"m1"}, time.Minute, 50*time.Millisecond, finder, client, prefs)
	go r.Run(context.Background())
	snap := waitTerminal(t, r, 5*time.Second)

	if snap.Status != models.MonitorCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	outcome := snap.Results["m1"]
	if !outcome.Success || outcome.Slot == nil || outcome.Slot.ComboKey() != comboB {
		t.Fatalf("expected booking on combo %s, got %+v", comboB, outcome)
	}

	calls := finder.callLog()
	if len(calls) < 2 {
		t.Fatalf("expected both preferences searched, got %d calls", len(calls))
	}
	if calls[0].combo != comboA || calls[1].combo != comboB {
		t.Fatalf("preference order violated: searched %s then %s, want %s then %s",
			calls[0].combo, calls[1].combo, comboA, comboB)
	}
}

func TestRunnerZeroDurationCompletesWithoutTicks(t *testing.T) {
	finder := &scriptFinder{}
	client := &bookingClient{}
	prefs := rosterWith(map[string][]models.SessionPreference{
		"m1": {{Attributes: map[string]string{"level": "beginner"}}},
	})

	r := newTestRunner(models.MonitorKindRoster, []string{"m1"}, 0, 50*time.Millisecond, finder, client, prefs)
	go r.Run(context.Background())
	snap := waitTerminal(t, r, 2*time.Second)

	if snap.Status != models.MonitorCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if len(finder.callLog()) != 0 {
		t.Fatalf("expected zero slot searches, got %d", len(finder.callLog()))
	}
	if client.createdCount() != 0 {
		t.Fatal("no bookings should have been attempted")
	}
	outcome := snap.Results["m1"]
	if outcome.Success || outcome.Error == "" {
		t.Fatalf("pending member should end with a not-found outcome, got %+v", outcome)
	}
}

func TestRunnerStopsWithinOneCheckInterval(t *testing.T) {
	finder := &scriptFinder{}
	client := &bookingClient{}
	prefs := rosterWith(map[string][]models.SessionPreference{
		"m1": {{Attributes: map[string]string{"level": "beginner"}}},
	})

	interval := 5 * time.Second
	r := newTestRunner(models.MonitorKindRoster, []string{"m1"}, time.Hour, interval, finder, client, prefs)
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.Run(ctx)

	// Let the first tick run, then stop while the runner sleeps.
	time.Sleep(100 * time.Millisecond)
	stopped := time.Now()
	r.requestStop(models.MonitorStopped)

	snap := waitTerminal(t, r, interval)
	if snap.Status != models.MonitorStopped {
		t.Fatalf("status = %s, want stopped", snap.Status)
	}
	if elapsed := time.Since(stopped); elapsed > interval {
		t.Fatalf("stop took %s, must land within one check interval (%s)", elapsed, interval)
	}
}

func TestRunnerTwoMemberScenario(t *testing.T) {
	// Two members, 100ms interval, ~2s budget. A slot for member X's combo
	// opens at tick 2; Y's combo never opens.
	prefX := models.SessionPreference{Attributes: map[string]string{"level": "intermediate", "side": "left"}}
	prefY := models.SessionPreference{Attributes: map[string]string{"level": "advanced", "side": "right"}}
	comboX := models.ComboKey(prefX.Attributes)

	finder := &scriptFinder{
		available: map[string]*models.AvailableSlot{
			comboX: slotFor(prefX.Attributes, "2026-09-05", "18:30"),
		},
		sinceTick: map[string]int{comboX: 2},
	}
	client := &bookingClient{}
	prefs := rosterWith(map[string][]models.SessionPreference{
		"x": {prefX},
		"y": {prefY},
	})

	r := newTestRunner(models.MonitorKindRoster, []string{"x", "y"}, 2*time.Second, 100*time.Millisecond, finder, client, prefs)
	go func() {
		// Advance the scripted tick counter in lockstep with the runner.
		for i := 0; i < 25; i++ {
			time.Sleep(100 * time.Millisecond)
			finder.bumpTick()
		}
	}()
	go r.Run(context.Background())
	snap := waitTerminal(t, r, 5*time.Second)

	if snap.Status != models.MonitorCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if !snap.Results["x"].Success {
		t.Fatalf("member x should be booked, got %+v", snap.Results["x"])
	}
	if snap.Results["x"].Voucher != "V-x" {
		t.Fatalf("member x voucher = %q, want V-x", snap.Results["x"].Voucher)
	}
	if snap.Results["y"].Success {
		t.Fatalf("member y should not be booked, got %+v", snap.Results["y"])
	}
	if client.createdCount() != 1 {
		t.Fatalf("expected exactly one booking call, got %d", client.createdCount())
	}
}

func TestRunnerAlreadyBookedIsTerminalPerMember(t *testing.T) {
	pref := models.SessionPreference{Attributes: map[string]string{"level": "beginner", "side": "left"}}
	combo := models.ComboKey(pref.Attributes)

	finder := &scriptFinder{
		available: map[string]*models.AvailableSlot{
			combo: slotFor(pref.Attributes, "2026-09-05", "09:00"),
		},
	}
	client := &bookingClient{
		createFn: func(req clubapi.BookingRequest) (clubapi.BookingConfirmation, error) {
			return clubapi.BookingConfirmation{}, &clubapi.APIError{
				Message: fmt.Sprintf("member %s already has an active booking", req.MemberID),
			}
		},
	}
	prefs := rosterWith(map[string][]models.SessionPreference{"m1": {pref}})

	r := newTestRunner(models.MonitorKindRoster, []string{"m1"}, time.Minute, 50*time.Millisecond, finder, client, prefs)
	go r.Run(context.Background())
	snap := waitTerminal(t, r, 5*time.Second)

	if snap.Status != models.MonitorCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	outcome := snap.Results["m1"]
	if outcome.Success {
		t.Fatal("already-booked must not be recorded as a success")
	}
	if client.createdCount() != 1 {
		t.Fatalf("already-booked must not be retried, got %d booking calls", client.createdCount())
	}
}

func TestRunnerTransientBookingErrorKeepsMemberPending(t *testing.T) {
	pref := models.SessionPreference{Attributes: map[string]string{"level": "advanced", "side": "left"}}
	combo := models.ComboKey(pref.Attributes)

	finder := &scriptFinder{
		available: map[string]*models.AvailableSlot{
			combo: slotFor(pref.Attributes, "2026-09-05", "20:00"),
		},
	}
	var attempts int
	var mu sync.Mutex
	client := &bookingClient{
		createFn: func(req clubapi.BookingRequest) (clubapi.BookingConfirmation, error) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				return clubapi.BookingConfirmation{}, &clubapi.APIError{Message: "gateway timeout"}
			}
			return clubapi.BookingConfirmation{Voucher: "V-retry"}, nil
		},
	}
	prefs := rosterWith(map[string][]models.SessionPreference{"m1": {pref}})

	r := newTestRunner(models.MonitorKindRoster, []string{"m1"}, time.Minute, 50*time.Millisecond, finder, client, prefs)
	go r.Run(context.Background())
	snap := waitTerminal(t, r, 5*time.Second)

	if snap.Status != models.MonitorCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if !snap.Results["m1"].Success || snap.Results["m1"].Voucher != "V-retry" {
		t.Fatalf("member should be booked on a later tick after the transient failure, got %+v", snap.Results["m1"])
	}
}

func TestRunnerFixedModeWithoutAutoBookReportsSlotOnly(t *testing.T) {
	attrs := map[string]string{"level": "intermediate", "side": "left"}
	combo := models.ComboKey(attrs)
	finder := &scriptFinder{
		available: map[string]*models.AvailableSlot{
			combo: slotFor(attrs, "2026-09-05", "17:00"),
		},
	}
	client := &bookingClient{}

	r := newTestRunner(models.MonitorKindFixed, []string{"m1"}, time.Minute, 50*time.Millisecond, finder, client, nil)
	r.fixed = &fixedTarget{level: "intermediate", side: "left", date: "2026-09-05", autoBook: false}
	r.targetDates = []string{"2026-09-05"}
	go r.Run(context.Background())
	snap := waitTerminal(t, r, 5*time.Second)

	if snap.Status != models.MonitorCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	outcome := snap.Results["m1"]
	if !outcome.Success || outcome.Slot == nil || outcome.Voucher != "" {
		t.Fatalf("expected a reported slot without a booking, got %+v", outcome)
	}
	if client.createdCount() != 0 {
		t.Fatal("auto-book off must never call CreateBooking")
	}
}

func TestRunnerFixedModeWithoutHourSearchesLevelSchedule(t *testing.T) {
	// No hour pinned: the search must carry the full hour table for the
	// level, not an unconstrained hour filter.
	attrs := map[string]string{"level": "beginner"}
	combo := models.ComboKey(attrs)
	finder := &scriptFinder{
		available: map[string]*models.AvailableSlot{
			combo: slotFor(attrs, "2026-09-05", "09:00"),
		},
	}
	client := &bookingClient{}

	r := newTestRunner(models.MonitorKindFixed, []string{"m1"}, time.Minute, 50*time.Millisecond, finder, client, nil)
	r.fixed = &fixedTarget{level: "beginner", date: "2026-09-05", autoBook: false}
	r.targetDates = []string{"2026-09-05"}
	go r.Run(context.Background())
	waitTerminal(t, r, 5*time.Second)

	calls := finder.callLog()
	if len(calls) == 0 {
		t.Fatal("expected at least one slot search")
	}
	want := availability.DefaultOptions().HoursForLevel("beginner")
	got := calls[0].hours
	if len(got) != len(want) {
		t.Fatalf("search hours = %v, want the level schedule %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("search hours = %v, want the level schedule %v", got, want)
		}
	}
}
