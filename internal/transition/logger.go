// Package transition records status changes to the audit log. Logging is
// edge-triggered against the last logged status, so a steady band costs no I/O.
package transition

import (
	"fmt"
	"time"

	"github.com/sweeney/crowd-signal/internal/auditlog"
	"github.com/sweeney/crowd-signal/internal/logic"
)

// AppendError reports a transition whose audit record did not persist.
// The in-memory state has already advanced when this is returned.
type AppendError struct {
	Entry auditlog.Entry
	Err   error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("log transition %s -> %s: %v", e.Entry.From, e.Entry.To, e.Err)
}

func (e *AppendError) Unwrap() error {
	return e.Err
}

// RecordIfChanged compares decision.Status with state and, on a change,
// appends one entry stamped at now. It returns the next state and the entry
// that was written (nil when nothing changed). On an append failure the
// returned state is still the advanced one and err is an *AppendError.
func RecordIfChanged(store auditlog.Store, now time.Time, obs logic.Observation, decision logic.Decision, state logic.ControllerState) (logic.ControllerState, *auditlog.Entry, error) {
	if !state.Changed(decision.Status) {
		return state, nil, nil
	}

	entry := auditlog.Entry{
		Timestamp:     now,
		Count:         obs.Count,
		From:          state.From(),
		To:            decision.Status,
		GreenDuration: decision.GreenDuration,
	}
	next := state.Advance(decision.Status)

	if err := store.Append(entry); err != nil {
		return next, &entry, &AppendError{Entry: entry, Err: err}
	}
	return next, &entry, nil
}

// Logger owns the ControllerState for one run. Not safe for concurrent use;
// the control loop is its only caller.
type Logger struct {
	store auditlog.Store
	now   func() time.Time
	state logic.ControllerState
}

// NewLogger creates a logger starting at START.
func NewLogger(store auditlog.Store, now func() time.Time) *Logger {
	if now == nil {
		now = time.Now
	}
	return &Logger{
		store: store,
		now:   now,
		state: logic.NewControllerState(),
	}
}

// Record logs the decision if its status differs from the last logged one.
func (l *Logger) Record(obs logic.Observation, decision logic.Decision) (*auditlog.Entry, error) {
	if !l.state.Changed(decision.Status) {
		return nil, nil
	}
	next, entry, err := RecordIfChanged(l.store, l.now(), obs, decision, l.state)
	l.state = next
	return entry, err
}

// State returns the current state.
func (l *Logger) State() logic.ControllerState {
	return l.state
}
