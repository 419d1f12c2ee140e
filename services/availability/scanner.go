package availability

import (
	"context"
	"time"

	"courtwatch/clubapi"
	"courtwatch/models"
	"courtwatch/utils"

	"go.uber.org/zap"
)

// Scanner exhaustively walks every attribute combination the facility
// sells and rebuilds the availability cache from what it finds.
type Scanner struct {
	Client clubapi.Client
	Cache  *Cache
	Opts   *Options
}

// ScanAll queries available dates and intervals for every combination,
// emits a slot for each bookable interval with remaining capacity, and
// replaces the cache wholesale. A failing combination or date is logged
// and skipped so a flaky facility API degrades the scan instead of
// aborting it. memberIDHint is forwarded on interval queries for APIs
// that price or filter per member.
func (s *Scanner) ScanAll(ctx context.Context, memberIDHint string) ([]models.AvailableSlot, error) {
	logger := utils.GetLogger()
	started := time.Now()

	snap := models.CacheSnapshot{
		ScannedAt: started,
		Dates:     make(map[string]map[string][]models.IntervalEntry),
		Packages:  make(map[string]models.PackageRef),
	}
	var slots []models.AvailableSlot

	for _, combo := range s.Opts.Combos() {
		key := models.ComboKey(combo)

		dates, err := s.Client.AvailableDates(ctx, combo)
		if err != nil {
			logger.Warn("scan: dates query failed, skipping combo",
				zap.String("combo", key), zap.Error(err))
			continue
		}

		for _, date := range dates {
			groups, err := s.Client.Intervals(ctx, date, combo, memberIDHint)
			if err != nil {
				logger.Warn("scan: intervals query failed, skipping date",
					zap.String("combo", key), zap.String("date", date), zap.Error(err))
				continue
			}

			for _, group := range groups {
				for _, iv := range group.Intervals {
					if !iv.IsAvailable || iv.AvailableQuantity <= 0 {
						continue
					}
					slots = append(slots, models.AvailableSlot{
						Date:       date,
						Interval:   iv.Interval,
						Attributes: combo,
						Available:  iv.AvailableQuantity,
						Max:        iv.MaxQuantity,
						PackageID:  group.PackageID,
						ProductID:  group.ProductID,
					})
					if snap.Dates[date] == nil {
						snap.Dates[date] = make(map[string][]models.IntervalEntry)
					}
					snap.Dates[date][key] = append(snap.Dates[date][key], models.IntervalEntry{
						Interval:  iv.Interval,
						Available: iv.AvailableQuantity,
						Max:       iv.MaxQuantity,
					})
					snap.Packages[key] = models.PackageRef{
						PackageID: group.PackageID,
						ProductID: group.ProductID,
					}
				}
			}
		}
	}

	if err := s.Cache.Save(snap); err != nil {
		// A dead cache file only costs the next reader a rescan.
		logger.Warn("scan: failed to persist cache", zap.Error(err))
	}

	logger.Info("availability scan finished",
		zap.Int("slots", len(slots)),
		zap.Int("dates", len(snap.Dates)),
		zap.Duration("took", time.Since(started)))
	return slots, nil
}
