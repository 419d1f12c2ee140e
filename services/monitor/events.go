package monitor

import (
	"fmt"
	"sync"

	"courtwatch/models"
	"courtwatch/utils"

	"go.uber.org/zap"
)

// eventBuffer bounds the per-monitor event channel. When a consumer falls
// behind the oldest undelivered event is dropped; delivery is at-least-once
// for attentive consumers, never a promise of completeness.
const eventBuffer = 64

// EventStream is the ordered status feed of one monitor. Every event is
// mirrored into an in-memory history for API snapshots and pushed to the
// channel for live consumers. Emit never blocks the monitor goroutine.
type EventStream struct {
	mu      sync.Mutex
	ch      chan models.StatusEvent
	history []models.StatusEvent
	closed  bool
}

func newEventStream() *EventStream {
	return &EventStream{ch: make(chan models.StatusEvent, eventBuffer)}
}

// Emit records and publishes one progress event.
func (s *EventStream) Emit(level, format string, args ...any) {
	ev := models.StatusEvent{
		Message: fmt.Sprintf(format, args...),
		Level:   level,
	}
	utils.GetLogger().Info("monitor event",
		zap.String("level", ev.Level), zap.String("message", ev.Message))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ev)
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		// Consumer is behind: drop the oldest event, keep the newest.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Events returns the live channel. It is closed when the monitor reaches
// a terminal state.
func (s *EventStream) Events() <-chan models.StatusEvent {
	return s.ch
}

// History returns a copy of every event emitted so far.
func (s *EventStream) History() []models.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StatusEvent, len(s.history))
	copy(out, s.history)
	return out
}

// Close ends the live feed. History stays readable.
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
