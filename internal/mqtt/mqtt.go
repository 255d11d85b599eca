// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/crowd-signal/internal/auditlog"
)

// Topic is the MQTT topic for status transitions.
const Topic = "traffic/crowd-signal/transitions"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "traffic/crowd-signal/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishTransition sends a logged status transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishTransition(entry auditlog.Entry) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "END_OF_STREAM", "CANCELLED" (shutdown only)
	RunID      string
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Transition TransitionPayload `json:"transition"`
}

// TransitionPayload contains one audit log entry.
type TransitionPayload struct {
	Timestamp     string `json:"timestamp"`
	Count         int    `json:"count"`
	From          string `json:"from"`
	To            string `json:"to"`
	GreenDuration int    `json:"green_duration_s"`
}

// FormatPayload creates the JSON payload for a transition.
func FormatPayload(entry auditlog.Entry) ([]byte, error) {
	payload := Payload{
		Transition: TransitionPayload{
			Timestamp:     entry.Timestamp.UTC().Format(time.RFC3339),
			Count:         entry.Count,
			From:          string(entry.From),
			To:            string(entry.To),
			GreenDuration: entry.GreenDuration,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			RunID:     event.RunID,
		},
	}
	return json.Marshal(payload)
}
