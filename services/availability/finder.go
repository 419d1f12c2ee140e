package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"courtwatch/clubapi"
	"courtwatch/models"
	"courtwatch/utils"

	"go.uber.org/zap"
)

// ErrNoSlot is returned by FindForCombo when no date/interval matches.
// Not finding a slot is the common case for a monitor tick, not a failure.
var ErrNoSlot = errors.New("no matching slot")

// DefaultStartBufferMinutes is how far in the future a session must start
// to be worth booking, unless configured otherwise.
const DefaultStartBufferMinutes = 20

// Finder performs the narrow, latency-critical search for one attribute
// combination. Unlike Scanner it never walks combinations the caller did
// not ask for, and it never touches the cache.
type Finder struct {
	Client clubapi.Client
	Opts   *Options

	// BufferMinutes guards against booking a session that starts too soon
	// to reach the facility. Zero means DefaultStartBufferMinutes.
	BufferMinutes int
	// Location is the facility's local timezone, used to compare slot
	// start times against "now". Nil means time.Local.
	Location *time.Location
	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// groupedInterval keeps the booking references of the interval group an
// interval came from, so a flattened sort does not lose them.
type groupedInterval struct {
	slot      clubapi.IntervalSlot
	packageID string
	productID string
}

func (f *Finder) buffer() time.Duration {
	m := f.BufferMinutes
	if m <= 0 {
		m = DefaultStartBufferMinutes
	}
	return time.Duration(m) * time.Minute
}

func (f *Finder) location() *time.Location {
	if f.Location != nil {
		return f.Location
	}
	return time.Local
}

func (f *Finder) now() time.Time {
	if f.Now != nil {
		return f.Now().In(f.location())
	}
	return time.Now().In(f.location())
}

// FindForCombo returns the first bookable slot for one attribute
// combination: earliest acceptable date, then earliest acceptable hour.
// targetDates and targetHours narrow the search when non-empty. A slot
// must start at least the configured buffer after now in the facility's
// local time. Returns ErrNoSlot when nothing matches.
func (f *Finder) FindForCombo(ctx context.Context, attrs map[string]string, memberID string, targetDates, targetHours []string) (*models.AvailableSlot, error) {
	logger := utils.GetLogger()
	now := f.now()
	today := now.Format(models.DateLayout)

	dates, err := f.Client.AvailableDates(ctx, attrs)
	if err != nil {
		return nil, fmt.Errorf("dates query for %s: %w", models.ComboKey(attrs), err)
	}

	wanted := toSet(targetDates)
	candidates := dates[:0:0]
	for _, date := range dates {
		if date < today {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[date]; !ok {
				continue
			}
		}
		candidates = append(candidates, date)
	}
	sort.Strings(candidates)

	hourSet := toSet(targetHours)

	for _, date := range candidates {
		groups, err := f.Client.Intervals(ctx, date, attrs, memberID)
		if err != nil {
			// A bad date must not hide a bookable later one.
			logger.Warn("targeted search: intervals query failed, skipping date",
				zap.String("date", date), zap.String("combo", models.ComboKey(attrs)), zap.Error(err))
			continue
		}

		// The facility may answer with several interval groups for one
		// date; flatten them so the earliest hour wins across groups,
		// not just within the group that happens to come first.
		var intervals []groupedInterval
		for _, group := range groups {
			for _, iv := range group.Intervals {
				intervals = append(intervals, groupedInterval{
					slot:      iv,
					packageID: group.PackageID,
					productID: group.ProductID,
				})
			}
		}
		sort.Slice(intervals, func(i, j int) bool {
			return intervals[i].slot.Interval < intervals[j].slot.Interval
		})

		for _, entry := range intervals {
			iv := entry.slot
			if !iv.IsAvailable || iv.AvailableQuantity <= 0 {
				continue
			}
			if len(hourSet) > 0 {
				if _, ok := hourSet[iv.Interval]; !ok {
					continue
				}
			}
			if !f.startsAfterBuffer(date, iv.Interval, now) {
				continue
			}
			// First match wins.
			return &models.AvailableSlot{
				Date:       date,
				Interval:   iv.Interval,
				Attributes: attrs,
				Available:  iv.AvailableQuantity,
				Max:        iv.MaxQuantity,
				PackageID:  entry.packageID,
				ProductID:  entry.productID,
			}, nil
		}
	}

	return nil, ErrNoSlot
}

// startsAfterBuffer reports whether a slot at date+interval begins at
// least the configured buffer after now, in the facility's timezone.
// Unparseable intervals are rejected rather than booked blind.
func (f *Finder) startsAfterBuffer(date, interval string, now time.Time) bool {
	start, err := time.ParseInLocation(models.DateLayout+" "+models.HourLayout, date+" "+interval, f.location())
	if err != nil {
		return false
	}
	return !start.Before(now.Add(f.buffer()))
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
