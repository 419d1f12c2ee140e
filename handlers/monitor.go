package handlers

import (
	"errors"
	"net/http"
	"time"

	"courtwatch/models"
	"courtwatch/services/monitor"
	"courtwatch/utils"

	"github.com/gin-gonic/gin"
)

// MonitorHandler exposes the monitor registry over HTTP.
type MonitorHandler struct {
	Registry *monitor.Registry
	// RetentionMinutes is the default age for cleanup of terminal monitors.
	RetentionMinutes int
}

func NewMonitorHandler(reg *monitor.Registry, retentionMinutes int) *MonitorHandler {
	return &MonitorHandler{Registry: reg, RetentionMinutes: retentionMinutes}
}

// CreateRoster starts a preference-driven monitor for a set of members.
func (h *MonitorHandler) CreateRoster(c *gin.Context) {
	var req models.RosterMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	mon, err := h.Registry.CreateRoster(req)
	if err != nil {
		var verr *monitor.ValidationError
		if errors.As(err, &verr) {
			utils.JSONError(c, http.StatusUnprocessableEntity, "monitor rejected", verr.Message)
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to create monitor", err.Error())
		return
	}
	c.JSON(http.StatusCreated, mon)
}

// CreateFixed starts a fixed-session monitor for one member.
func (h *MonitorHandler) CreateFixed(c *gin.Context) {
	var req models.FixedMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	mon, err := h.Registry.CreateFixed(req)
	if err != nil {
		var verr *monitor.ValidationError
		if errors.As(err, &verr) {
			utils.JSONError(c, http.StatusUnprocessableEntity, "monitor rejected", verr.Message)
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to create monitor", err.Error())
		return
	}
	c.JSON(http.StatusCreated, mon)
}

// Get returns one monitor snapshot.
func (h *MonitorHandler) Get(c *gin.Context) {
	mon, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "monitor not found", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, mon)
}

// List returns every monitor, oldest first.
func (h *MonitorHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"monitors": h.Registry.List()})
}

// Stop requests a graceful stop of a running monitor.
func (h *MonitorHandler) Stop(c *gin.Context) {
	if err := h.Registry.Stop(c.Param("id")); err != nil {
		utils.JSONError(c, http.StatusNotFound, "monitor not found", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

// Cleanup evicts terminal monitors older than the retention window.
func (h *MonitorHandler) Cleanup(c *gin.Context) {
	maxAge := time.Duration(h.RetentionMinutes) * time.Minute
	evicted := h.Registry.Cleanup(maxAge)
	c.JSON(http.StatusOK, gin.H{"evicted": evicted})
}
