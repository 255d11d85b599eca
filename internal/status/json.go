package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	RunID         string     `json:"run_id"`
	State         string     `json:"state"`
	Count         *int       `json:"crowd_count"`
	Density       string     `json:"density"`
	GreenDuration int        `json:"green_duration_s,omitempty"`
	Color         string     `json:"color,omitempty"`
	LastLogged    string     `json:"last_logged"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"cycle_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of cycle counts.
type CountsJSON struct {
	Cycles      int `json:"cycles"`
	Transitions int `json:"transitions"`
	LogFailures int `json:"log_failures"`
	Low         int `json:"low"`
	Default     int `json:"default"`
	High        int `json:"high"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	LowThreshold  int    `json:"low_threshold"`
	HighThreshold int    `json:"high_threshold"`
	BaseGreen     int    `json:"base_green_duration_s"`
	Increment     int    `json:"increment_s"`
	Decrement     int    `json:"decrement_s"`
	Source        string `json:"source"`
	LogFile       string `json:"log_file_path"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
}

func stateName(running bool) string {
	if running {
		return "RUNNING"
	}
	return "STOPPED"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		RunID:         snap.RunID,
		State:         stateName(snap.Running),
		Density:       "UNKNOWN",
		LastLogged:    string(snap.LastLogged),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:      snap.Cycles,
			Transitions: snap.Transitions,
			LogFailures: snap.LogFailures,
			Low:         snap.Bands.Low,
			Default:     snap.Bands.Default,
			High:        snap.Bands.High,
		},
		Config: ConfigJSON{
			LowThreshold:  snap.Config.Thresholds.Low,
			HighThreshold: snap.Config.Thresholds.High,
			BaseGreen:     snap.Config.Thresholds.BaseDuration,
			Increment:     snap.Config.Thresholds.Increment,
			Decrement:     snap.Config.Thresholds.Decrement,
			Source:        snap.Config.Source,
			LogFile:       snap.Config.LogFile,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
	if snap.Observed {
		count := snap.Count
		inner.Count = &count
		inner.Density = string(snap.Decision.Status)
		inner.GreenDuration = snap.Decision.GreenDuration
		inner.Color = snap.Decision.Color.Hex()
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
