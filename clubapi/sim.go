package clubapi

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Simulator is an in-memory facility used for local development and
// tests. It honors the same contract and failure modes as the real API,
// including the "already has an active booking" rejection, without
// speaking the facility's wire protocol.
type Simulator struct {
	mu       sync.Mutex
	slots    map[string]map[string][]IntervalSlot // comboKey -> date -> intervals
	packages map[string]PackageRefSim
	bookings map[string]Booking // voucher -> booking
	byMember map[string]string  // memberID -> voucher
}

// PackageRefSim is the package/product pair the simulator hands out per
// combination.
type PackageRefSim struct {
	PackageID string
	ProductID string
}

// NewSimulator returns an empty facility.
func NewSimulator() *Simulator {
	return &Simulator{
		slots:    make(map[string]map[string][]IntervalSlot),
		packages: make(map[string]PackageRefSim),
		bookings: make(map[string]Booking),
		byMember: make(map[string]string),
	}
}

func comboKeyOf(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for i, k := range keys {
		if i > 0 {
			key += "|"
		}
		key += tags[k]
	}
	return key
}

// Seed adds one open slot for the given combination.
func (s *Simulator) Seed(tags map[string]string, date, interval string, available, max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := comboKeyOf(tags)
	if s.slots[key] == nil {
		s.slots[key] = make(map[string][]IntervalSlot)
	}
	s.slots[key][date] = append(s.slots[key][date], IntervalSlot{
		Interval:          interval,
		IsAvailable:       available > 0,
		AvailableQuantity: available,
		MaxQuantity:       max,
	})
	if _, ok := s.packages[key]; !ok {
		s.packages[key] = PackageRefSim{
			PackageID: "pkg-" + key,
			ProductID: "prod-" + key,
		}
	}
}

func (s *Simulator) AvailableDates(_ context.Context, tags map[string]string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dates := make([]string, 0)
	for date := range s.slots[comboKeyOf(tags)] {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

func (s *Simulator) Intervals(_ context.Context, date string, tags map[string]string, _ string) ([]IntervalGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := comboKeyOf(tags)
	intervals := s.slots[key][date]
	if len(intervals) == 0 {
		return nil, nil
	}
	pkg := s.packages[key]
	group := IntervalGroup{
		PackageID: pkg.PackageID,
		ProductID: pkg.ProductID,
		Intervals: append([]IntervalSlot(nil), intervals...),
	}
	return []IntervalGroup{group}, nil
}

func (s *Simulator) CreateBooking(_ context.Context, req BookingRequest) (BookingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byMember[req.MemberID]; taken {
		return BookingConfirmation{}, &APIError{
			Message: fmt.Sprintf("member %s already has an active booking", req.MemberID),
		}
	}

	key := comboKeyOf(req.Tags)
	intervals := s.slots[key][req.Date]
	for i := range intervals {
		if intervals[i].Interval != req.Interval {
			continue
		}
		if !intervals[i].IsAvailable || intervals[i].AvailableQuantity <= 0 {
			return BookingConfirmation{}, &APIError{Message: "slot no longer available"}
		}
		intervals[i].AvailableQuantity--
		if intervals[i].AvailableQuantity == 0 {
			intervals[i].IsAvailable = false
		}

		voucher := uuid.New().String()
		s.bookings[voucher] = Booking{
			Voucher:  voucher,
			MemberID: req.MemberID,
			Date:     req.Date,
			Interval: req.Interval,
			Tags:     req.Tags,
		}
		s.byMember[req.MemberID] = voucher
		return BookingConfirmation{
			Voucher:    voucher,
			AccessCode: uuid.New().String()[:8],
		}, nil
	}
	return BookingConfirmation{}, &APIError{Message: "no such slot"}
}

func (s *Simulator) CancelBooking(_ context.Context, voucher string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[voucher]
	if !ok {
		return &APIError{Message: "unknown voucher"}
	}
	delete(s.bookings, voucher)
	delete(s.byMember, b.MemberID)

	key := comboKeyOf(b.Tags)
	intervals := s.slots[key][b.Date]
	for i := range intervals {
		if intervals[i].Interval == b.Interval {
			intervals[i].AvailableQuantity++
			intervals[i].IsAvailable = true
			break
		}
	}
	return nil
}

func (s *Simulator) ListBookings(_ context.Context, memberID string) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if memberID == "" || b.MemberID == memberID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Voucher < out[j].Voucher })
	return out, nil
}
