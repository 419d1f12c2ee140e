package models

import "time"

// MonitorKind selects between the two monitor flavors.
type MonitorKind string

const (
	// MonitorKindRoster searches by each member's ranked preferences.
	MonitorKindRoster MonitorKind = "roster"
	// MonitorKindFixed searches one explicit combination for one member.
	MonitorKindFixed MonitorKind = "fixed"
)

// MonitorStatus is the lifecycle state of a monitor.
type MonitorStatus string

const (
	MonitorPending      MonitorStatus = "pending"
	MonitorRunning      MonitorStatus = "running"
	MonitorStopping     MonitorStatus = "stopping"
	MonitorStopped      MonitorStatus = "stopped"
	MonitorCompleted    MonitorStatus = "completed"
	MonitorError        MonitorStatus = "error"
	MonitorDisconnected MonitorStatus = "disconnected"
)

// Terminal reports whether the status is final, i.e. the monitor's
// goroutine has exited and the record is eligible for age-based cleanup.
func (s MonitorStatus) Terminal() bool {
	switch s {
	case MonitorStopped, MonitorCompleted, MonitorError, MonitorDisconnected:
		return true
	}
	return false
}

// BookingOutcome is the terminal per-member result of a monitor run,
// appended exactly once per member.
type BookingOutcome struct {
	Success    bool           `json:"success"`
	Voucher    string         `json:"voucher,omitempty"`
	AccessCode string         `json:"accessCode,omitempty"`
	Slot       *AvailableSlot `json:"slot,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// StatusEvent is one human-readable progress record emitted by a monitor.
// Consumers must tolerate at-least-once delivery.
type StatusEvent struct {
	Message string `json:"message"`
	Level   string `json:"level"` // "info" | "warning" | "error"
}

// Monitor is a point-in-time snapshot of one monitor's state, safe to
// hand to API callers while the run goroutine keeps mutating the live
// record behind the registry.
type Monitor struct {
	ID            string                    `json:"id"`
	Kind          MonitorKind               `json:"kind"`
	Status        MonitorStatus             `json:"status"`
	MemberIDs     []string                  `json:"memberIds"`
	TargetDates   []string                  `json:"targetDates,omitempty"`
	TargetHour    string                    `json:"targetHour,omitempty"`
	Results       map[string]BookingOutcome `json:"results"`
	Events        []StatusEvent             `json:"events"`
	CreatedAt     time.Time                 `json:"createdAt"`
	FinishedAt    *time.Time                `json:"finishedAt,omitempty"`
	StatusMessage string                    `json:"statusMessage,omitempty"`
}

// RosterMonitorRequest creates a preference-driven monitor for several
// members at once.
type RosterMonitorRequest struct {
	MemberIDs            []string `json:"memberIds"`
	TargetDates          []string `json:"targetDates,omitempty"`
	DurationMinutes      int      `json:"durationMinutes"`
	CheckIntervalSeconds int      `json:"checkIntervalSeconds"`
}

// FixedMonitorRequest creates a monitor for one member and one explicit
// level/side/date combination. When TargetHour is empty every hour valid
// for the level is tried in ascending order. With AutoBook false the
// monitor reports the first matching slot without booking it.
type FixedMonitorRequest struct {
	MemberID             string `json:"memberId"`
	Level                string `json:"level"`
	Side                 string `json:"side,omitempty"`
	TargetDate           string `json:"targetDate"`
	TargetHour           string `json:"targetHour,omitempty"`
	AutoBook             bool   `json:"autoBook"`
	DurationMinutes      int    `json:"durationMinutes"`
	CheckIntervalSeconds int    `json:"checkIntervalSeconds"`
}
