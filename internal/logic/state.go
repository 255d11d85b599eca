package logic

import "time"

// ControllerState is the memory of the last logged status.
// The zero value behaves like a fresh state at START.
type ControllerState struct {
	LastLogged Status
}

// NewControllerState returns the state a run begins with.
func NewControllerState() ControllerState {
	return ControllerState{LastLogged: StatusStart}
}

// From returns the status a transition would be recorded from.
func (s ControllerState) From() Status {
	if s.LastLogged == "" {
		return StatusStart
	}
	return s.LastLogged
}

// Changed reports whether next differs from the last logged status.
// Comparison is against the last logged value, not the previous cycle.
func (s ControllerState) Changed(next Status) bool {
	return next != s.From()
}

// Advance returns the state after logging a transition to next.
func (s ControllerState) Advance(next Status) ControllerState {
	return ControllerState{LastLogged: next}
}

// Heartbeat decides when a periodic liveness event is due.
type Heartbeat struct {
	last time.Time
}

// NewHeartbeat creates a heartbeat timer starting at startTime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{last: startTime}
}

// Due reports whether interval has elapsed since the last heartbeat (or
// startup) and, if so, restarts the interval at now. An interval <= 0
// disables heartbeats.
func (h *Heartbeat) Due(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	if now.Sub(h.last) < interval {
		return false
	}
	h.last = now
	return true
}
