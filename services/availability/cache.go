package availability

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"courtwatch/models"
	"courtwatch/utils"

	"go.uber.org/zap"
)

// Cache is the on-disk snapshot of all known open slots. It is best-effort
// by design: monitors and scans read-modify-write the file with no locking,
// so concurrent writers may overwrite each other's single-slot patches.
// Booking correctness never depends on the cache; only full scans are
// authoritative, everything else is a hint.
type Cache struct {
	Path string
}

// NewCache returns a cache backed by the given file path.
func NewCache(path string) *Cache {
	return &Cache{Path: path}
}

// Load reads the snapshot from disk. A missing or unreadable file yields
// an empty (and therefore invalid) snapshot rather than an error; the
// caller cold-starts with a scan.
func (c *Cache) Load() models.CacheSnapshot {
	logger := utils.GetLogger()

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("availability cache unreadable, treating as empty",
				zap.String("path", c.Path), zap.Error(err))
		}
		return models.CacheSnapshot{}
	}

	var snap models.CacheSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("availability cache corrupt, treating as empty",
			zap.String("path", c.Path), zap.Error(err))
		return models.CacheSnapshot{}
	}
	return snap
}

// Save replaces the on-disk snapshot wholesale.
func (c *Cache) Save(snap models.CacheSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal availability cache: %w", err)
	}
	if err := os.WriteFile(c.Path, data, 0o644); err != nil {
		return fmt.Errorf("write availability cache %s: %w", c.Path, err)
	}
	return nil
}

// IsValid reports whether the snapshot is usable: it must be non-empty and
// every date key must be today or later. Staleness is determined solely by
// this invariant, not by the snapshot's age.
func (c *Cache) IsValid(snap models.CacheSnapshot, today time.Time) bool {
	if snap.Empty() {
		return false
	}
	cutoff := today.Format(models.DateLayout)
	for date := range snap.Dates {
		if date < cutoff {
			return false
		}
	}
	return true
}

// RefreshSingleSlot overwrites the available count of one cached interval
// after a booking or cancellation. If the date, combo or interval is not
// in the cache this is a silent no-op: the cache is never authoritative,
// so a missed patch costs nothing.
func (c *Cache) RefreshSingleSlot(date, comboKey, interval string, available int) {
	snap := c.Load()
	combos, ok := snap.Dates[date]
	if !ok {
		return
	}
	entries, ok := combos[comboKey]
	if !ok {
		return
	}
	patched := false
	for i := range entries {
		if entries[i].Interval == interval {
			entries[i].Available = available
			patched = true
			break
		}
	}
	if !patched {
		return
	}
	if err := c.Save(snap); err != nil {
		utils.GetLogger().Warn("failed to persist single-slot cache patch",
			zap.String("date", date), zap.String("combo", comboKey), zap.Error(err))
	}
}
