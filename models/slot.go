package models

import (
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire format for all calendar dates handled by the
// availability engine ("2025-03-14"). Lexicographic order equals
// chronological order, which the cache validity check relies on.
const DateLayout = "2006-01-02"

// HourLayout is the wire format for session start times ("18:30").
const HourLayout = "15:04"

// AvailableSlot is one bookable date+time for one attribute combination.
// Immutable value type: produced by scans and targeted searches, consumed
// by matching and booking.
type AvailableSlot struct {
	Date       string            `json:"date"`
	Interval   string            `json:"interval"`
	Attributes map[string]string `json:"attributes"`
	Available  int               `json:"available"`
	Max        int               `json:"max"`
	PackageID  string            `json:"packageId"`
	ProductID  string            `json:"productId"`
}

// ComboKey returns the cache partition key for the slot's attribute
// combination.
func (s AvailableSlot) ComboKey() string {
	return ComboKey(s.Attributes)
}

// ComboKey deterministically joins the values of an attribute combination,
// ordered by attribute name, into a single cache partition key.
// {level: "intermediate", side: "left"} -> "intermediate|left".
func ComboKey(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, 0, len(keys))
	for _, k := range keys {
		vals = append(vals, attrs[k])
	}
	return strings.Join(vals, "|")
}

// IntervalEntry is one cached interval for a date+combo partition.
type IntervalEntry struct {
	Interval  string `json:"interval"`
	Available int    `json:"available"`
	Max       int    `json:"max"`
}

// PackageRef identifies the facility package/product pair needed to book
// any slot of a given combination.
type PackageRef struct {
	PackageID string `json:"packageId"`
	ProductID string `json:"productId"`
}

// CacheSnapshot is the on-disk picture of all known open slots, keyed by
// date and combo key. A snapshot is replaced wholesale by a full scan and
// patched in place after a booking or cancellation.
type CacheSnapshot struct {
	ScannedAt time.Time                             `json:"scanned_at"`
	Dates     map[string]map[string][]IntervalEntry `json:"dates"`
	Packages  map[string]PackageRef                 `json:"packages"`
}

// Empty reports whether the snapshot holds no dates at all.
func (s CacheSnapshot) Empty() bool {
	return len(s.Dates) == 0
}
