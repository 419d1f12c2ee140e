package handlers

import (
	"errors"
	"net/http"
	"strings"

	"courtwatch/services/availability"
	"courtwatch/utils"

	"github.com/gin-gonic/gin"
)

// AvailabilityHandler exposes the scan/cache engine and the targeted
// slot search.
type AvailabilityHandler struct {
	Scanner *availability.Scanner
	Finder  *availability.Finder
	Cache   *availability.Cache
}

func NewAvailabilityHandler(scanner *availability.Scanner, finder *availability.Finder, cache *availability.Cache) *AvailabilityHandler {
	return &AvailabilityHandler{Scanner: scanner, Finder: finder, Cache: cache}
}

// Scan walks every attribute combination and rebuilds the cache.
func (h *AvailabilityHandler) Scan(c *gin.Context) {
	slots, err := h.Scanner.ScanAll(c.Request.Context(), c.Query("memberId"))
	if err != nil {
		utils.JSONError(c, http.StatusBadGateway, "scan failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots, "count": len(slots)})
}

// Snapshot returns the current cache contents.
func (h *AvailabilityHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.Cache.Load())
}

// Find runs the narrow first-match search for one combination. Dates and
// hours narrow the search when given, comma-separated.
func (h *AvailabilityHandler) Find(c *gin.Context) {
	level := c.Query("level")
	if level == "" {
		utils.JSONError(c, http.StatusBadRequest, "level is required", "")
		return
	}
	attrs := map[string]string{"level": level}
	if side := c.Query("side"); side != "" {
		attrs["side"] = side
	}

	slot, err := h.Finder.FindForCombo(
		c.Request.Context(),
		attrs,
		c.Query("memberId"),
		splitParam(c.Query("dates")),
		splitParam(c.Query("hours")),
	)
	if errors.Is(err, availability.ErrNoSlot) {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	if err != nil {
		utils.JSONError(c, http.StatusBadGateway, "slot search failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "slot": slot})
}

func splitParam(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
