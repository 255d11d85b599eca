// Package status provides a thread-safe status tracker for the crowd-signal
// controller. It is read by the HTTP handlers and the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// Config contains controller configuration for display.
type Config struct {
	Thresholds  logic.Thresholds
	Source      string
	LogFile     string
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of controller state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	RunID         string
	Running       bool
	Observed      bool // at least one cycle completed
	Count         int
	Decision      logic.Decision
	LastLogged    logic.Status
	Cycles        int
	Transitions   int
	LogFailures   int
	Bands         logic.BandCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, runID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			RunID:      runID,
			StartTime:  startTime,
			LastLogged: logic.StatusStart,
			Config:     cfg,
		},
	}
}

// Update records one completed cycle.
// Called from the control loop after every decision.
func (t *Tracker) Update(obs logic.Observation, d logic.Decision, lastLogged logic.Status) {
	t.mu.Lock()
	t.snap.Observed = true
	t.snap.Count = obs.Count
	t.snap.Decision = d
	t.snap.LastLogged = lastLogged
	t.snap.Cycles++
	t.snap.Bands.Add(d.Status)
	t.mu.Unlock()
}

// RecordTransition counts a logged transition.
func (t *Tracker) RecordTransition() {
	t.mu.Lock()
	t.snap.Transitions++
	t.mu.Unlock()
}

// RecordLogFailure counts a transition that could not be persisted.
func (t *Tracker) RecordLogFailure() {
	t.mu.Lock()
	t.snap.LogFailures++
	t.mu.Unlock()
}

// SetRunning sets the loop state.
func (t *Tracker) SetRunning(running bool) {
	t.mu.Lock()
	t.snap.Running = running
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
