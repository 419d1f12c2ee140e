package handlers

import (
	"net/http"

	"courtwatch/services/monitor"
	"courtwatch/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins — adjust for production if needed
		return true
	},
}

// EventsHandler streams a monitor's status events over WebSocket.
type EventsHandler struct {
	Registry *monitor.Registry
}

func NewEventsHandler(reg *monitor.Registry) *EventsHandler {
	return &EventsHandler{Registry: reg}
}

// Stream upgrades the connection and pushes every status event of the
// monitor until it reaches a terminal state or the client goes away.
// With ?stop_on_disconnect=true the monitor is marked Disconnected and
// shut down when the client drops before completion.
func (h *EventsHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	stream, err := h.Registry.Events(id)
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "monitor not found", id)
		return
	}
	stopOnDisconnect := c.Query("stop_on_disconnect") == "true"

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "websocket upgrade failed", err.Error())
		return
	}
	defer conn.Close()
	logger := utils.GetLogger()

	// Replay history first so late subscribers see the whole story.
	for _, ev := range stream.History() {
		if err := conn.WriteJSON(ev); err != nil {
			h.clientGone(id, stopOnDisconnect)
			return
		}
	}

	// Reader goroutine: its only job is to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				// Monitor is terminal; send the final snapshot and close.
				if mon, err := h.Registry.Get(id); err == nil {
					_ = conn.WriteJSON(mon)
				}
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("event stream write failed", zap.String("monitor", id), zap.Error(err))
				h.clientGone(id, stopOnDisconnect)
				return
			}
		case <-done:
			h.clientGone(id, stopOnDisconnect)
			return
		}
	}
}

func (h *EventsHandler) clientGone(id string, stopOnDisconnect bool) {
	if !stopOnDisconnect {
		return
	}
	mon, err := h.Registry.Get(id)
	if err != nil || mon.Status.Terminal() {
		return
	}
	utils.GetLogger().Info("event consumer gone, disconnecting monitor", zap.String("monitor", id))
	_ = h.Registry.Disconnect(id)
}
