package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"courtwatch/clubapi"
)

// stubFacility serves canned dates and intervals and records every query.
type stubFacility struct {
	mu        sync.Mutex
	dates     []string
	intervals map[string][]clubapi.IntervalGroup // date -> groups
	datesErr  error
	ivErr     map[string]error
	queried   []string
}

func (f *stubFacility) AvailableDates(_ context.Context, _ map[string]string) ([]string, error) {
	if f.datesErr != nil {
		return nil, f.datesErr
	}
	return f.dates, nil
}

func (f *stubFacility) Intervals(_ context.Context, date string, _ map[string]string, _ string) ([]clubapi.IntervalGroup, error) {
	f.mu.Lock()
	f.queried = append(f.queried, date)
	f.mu.Unlock()
	if err := f.ivErr[date]; err != nil {
		return nil, err
	}
	return f.intervals[date], nil
}

func (f *stubFacility) CreateBooking(context.Context, clubapi.BookingRequest) (clubapi.BookingConfirmation, error) {
	return clubapi.BookingConfirmation{}, errors.New("not implemented")
}
func (f *stubFacility) CancelBooking(context.Context, string) error { return nil }
func (f *stubFacility) ListBookings(context.Context, string) ([]clubapi.Booking, error) {
	return nil, nil
}

func group(pkg string, slots ...clubapi.IntervalSlot) []clubapi.IntervalGroup {
	return []clubapi.IntervalGroup{{PackageID: pkg, ProductID: pkg + "-prod", Intervals: slots}}
}

func open(interval string, qty int) clubapi.IntervalSlot {
	return clubapi.IntervalSlot{Interval: interval, IsAvailable: true, AvailableQuantity: qty, MaxQuantity: 4}
}

func closed(interval string) clubapi.IntervalSlot {
	return clubapi.IntervalSlot{Interval: interval, IsAvailable: false, AvailableQuantity: 0, MaxQuantity: 4}
}

// clock pinned to 10:00 on 2026-09-01 UTC; "today" for every finder test.
var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func newTestFinder(f *stubFacility) *Finder {
	return &Finder{
		Client:        f,
		Opts:          DefaultOptions(),
		BufferMinutes: 20,
		Location:      time.UTC,
		Now:           func() time.Time { return testNow },
	}
}

func TestFindForComboReturnsEarliestDateThenEarliestHour(t *testing.T) {
	f := &stubFacility{
		dates: []string{"2026-09-03", "2026-09-02"}, // deliberately unsorted
		intervals: map[string][]clubapi.IntervalGroup{
			"2026-09-02": group("pkg-a", open("18:30", 2), open("10:30", 1)),
			"2026-09-03": group("pkg-a", open("09:00", 3)),
		},
	}
	finder := newTestFinder(f)

	slot, err := finder.FindForCombo(context.Background(), map[string]string{"level": "intermediate"}, "m1", nil, nil)
	if err != nil {
		t.Fatalf("FindForCombo: %v", err)
	}
	if slot.Date != "2026-09-02" || slot.Interval != "10:30" {
		t.Fatalf("got %s %s, want earliest date then earliest hour 2026-09-02 10:30", slot.Date, slot.Interval)
	}
	if slot.PackageID != "pkg-a" || slot.ProductID != "pkg-a-prod" {
		t.Fatalf("package refs not propagated: %+v", slot)
	}
}

func TestFindForComboOrdersHoursAcrossIntervalGroups(t *testing.T) {
	// The earliest bookable hour may live in a later interval group; the
	// group order must not decide which hour wins.
	f := &stubFacility{
		dates: []string{"2026-09-02"},
		intervals: map[string][]clubapi.IntervalGroup{
			"2026-09-02": {
				{PackageID: "pkg-late", ProductID: "pkg-late-prod", Intervals: []clubapi.IntervalSlot{open("18:30", 2)}},
				{PackageID: "pkg-early", ProductID: "pkg-early-prod", Intervals: []clubapi.IntervalSlot{open("09:00", 1)}},
			},
		},
	}
	finder := newTestFinder(f)

	slot, err := finder.FindForCombo(context.Background(), map[string]string{"level": "beginner"}, "m1", nil, nil)
	if err != nil {
		t.Fatalf("FindForCombo: %v", err)
	}
	if slot.Interval != "09:00" {
		t.Fatalf("got interval %s, want 09:00 (earliest hour regardless of group order)", slot.Interval)
	}
	if slot.PackageID != "pkg-early" || slot.ProductID != "pkg-early-prod" {
		t.Fatalf("slot carries refs from the wrong group: %+v", slot)
	}
}

func TestFindForComboHonorsStartBuffer(t *testing.T) {
	// Now is 10:00; with a 20 minute buffer, a 10:15 same-day slot is too
	// soon and a 10:20 slot is exactly on the boundary (still bookable).
	f := &stubFacility{
		dates: []string{"2026-09-01"},
		intervals: map[string][]clubapi.IntervalGroup{
			"2026-09-01": group("pkg-a", open("10:15", 1), open("10:20", 1)),
		},
	}
	finder := newTestFinder(f)

	slot, err := finder.FindForCombo(context.Background(), map[string]string{"level": "beginner"}, "m1", nil, nil)
	if err != nil {
		t.Fatalf("FindForCombo: %v", err)
	}
	if slot.Interval != "10:20" {
		t.Fatalf("got interval %s, want 10:20 (10:15 violates the start buffer)", slot.Interval)
	}
}

func TestFindForComboNeverReturnsSlotInsideBuffer(t *testing.T) {
	f := &stubFacility{
		dates: []string{"2026-09-01"},
		intervals: map[string][]clubapi.IntervalGroup{
			"2026-09-01": group("pkg-a", open("09:00", 1), open("10:00", 1), open("10:19", 1)),
		},
	}
	finder := newTestFinder(f)

	_, err := finder.FindForCombo(context.Background(), map[string]string{"level": "beginner"}, "m1", nil, nil)
	if !errors.Is(err, ErrNoSlot) {
		t.Fatalf("expected ErrNoSlot when every slot starts inside the buffer, got %v", err)
	}
}

func TestFindForComboFiltersTargetDatesAndHours(t *testing.T) {
	f := &stubFacility{
		dates: []string{"2026-09-02", "2026-09-03", "2026-09-04"},
		intervals: map[string][]clubapi.IntervalGroup{
			"2026-09-02": group("pkg-a", open("09:00", 1)),
			"2026-09-03": group("pkg-a", open("09:00", 1), open("18:30", 1)),
			"2026-09-04": group("pkg-a", open("18:30", 1)),
		},
	}
	finder := newTestFinder(f)

	slot, err := finder.FindForCombo(context.Background(), map[string]string{"level": "advanced"}, "m1",
		[]string{"2026-09-03", "2026-09-04"}, []string{"18:30"})
	if err != nil {
		t.Fatalf("FindForCombo: %v", err)
	}
	if slot.Date != "2026-09-03" || slot.Interval != "18:30" {
		t.Fatalf("got %s %s, want 2026-09-03 18:30", slot.Date, slot.Interval)
	}
	for _, q := range f.queried {
		if q == "2026-09-02" {
			t.Fatal("queried a date outside the target set")
		}
	}
}

func TestFindForComboSkipsPastDatesAndFullSlots(t *testing.T) {
	f := &stubFacility{
		dates: []string{"2026-08-30", "2026-09-02"},
		intervals: map[string][]clubapi.IntervalGroup{
			"2026-08-30": group("pkg-a", open("09:00", 1)),
			"2026-09-02": group("pkg-a", closed("09:00"), open("10:30", 2)),
		},
	}
	finder := newTestFinder(f)

	slot, err := finder.FindForCombo(context.Background(), map[string]string{"level": "beginner"}, "m1", nil, nil)
	if err != nil {
		t.Fatalf("FindForCombo: %v", err)
	}
	if slot.Date != "2026-09-02" || slot.Interval != "10:30" {
		t.Fatalf("got %s %s, want 2026-09-02 10:30", slot.Date, slot.Interval)
	}
	for _, q := range f.queried {
		if q == "2026-08-30" {
			t.Fatal("queried a date in the past")
		}
	}
}

func TestFindForComboSkipsFailingDateAndTriesNext(t *testing.T) {
	f := &stubFacility{
		dates: []string{"2026-09-02", "2026-09-03"},
		intervals: map[string][]clubapi.IntervalGroup{
			"2026-09-03": group("pkg-a", open("12:00", 1)),
		},
		ivErr: map[string]error{
			"2026-09-02": &clubapi.APIError{Message: "upstream hiccup"},
		},
	}
	finder := newTestFinder(f)

	slot, err := finder.FindForCombo(context.Background(), map[string]string{"level": "advanced"}, "m1", nil, nil)
	if err != nil {
		t.Fatalf("FindForCombo should survive a failing date: %v", err)
	}
	if slot.Date != "2026-09-03" {
		t.Fatalf("got date %s, want 2026-09-03", slot.Date)
	}
}

func TestFindForComboReturnsNoSlotWhenNothingMatches(t *testing.T) {
	f := &stubFacility{dates: []string{}}
	finder := newTestFinder(f)

	_, err := finder.FindForCombo(context.Background(), map[string]string{"level": "beginner"}, "m1", nil, nil)
	if !errors.Is(err, ErrNoSlot) {
		t.Fatalf("expected ErrNoSlot, got %v", err)
	}
}
