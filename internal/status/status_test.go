package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/crowd-signal/internal/logic"
)

func decide(t *testing.T, count int) logic.Decision {
	t.Helper()
	d, err := logic.Classify(count, logic.DefaultThresholds())
	if err != nil {
		t.Fatalf("classify %d: %v", count, err)
	}
	return d
}

func testConfig() Config {
	return Config{
		Thresholds:  logic.DefaultThresholds(),
		Source:      "detector",
		LogFile:     "crowd_control_log.csv",
		HeartbeatMs: 900000,
		Broker:      "tcp://localhost:1883",
		HTTPAddr:    ":8080",
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, "run-1", testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.RunID != "run-1" {
		t.Errorf("RunID: got %q, want run-1", snap.RunID)
	}
	if snap.LastLogged != logic.StatusStart {
		t.Errorf("LastLogged: got %q, want START", snap.LastLogged)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if snap.Observed {
		t.Error("expected Observed=false initially")
	}
	if snap.Running {
		t.Error("expected Running=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})

	tr.Update(logic.Observation{Count: 2}, decide(t, 2), logic.StatusLow)
	tr.Update(logic.Observation{Count: 9}, decide(t, 9), logic.StatusHigh)
	tr.Update(logic.Observation{Count: 9}, decide(t, 9), logic.StatusHigh)

	snap := tr.Snapshot()
	if !snap.Observed {
		t.Error("expected Observed=true")
	}
	if snap.Count != 9 {
		t.Errorf("Count: got %d, want 9", snap.Count)
	}
	if snap.Decision.Status != logic.StatusHigh {
		t.Errorf("Decision.Status: got %q, want HIGH", snap.Decision.Status)
	}
	if snap.LastLogged != logic.StatusHigh {
		t.Errorf("LastLogged: got %q, want HIGH", snap.LastLogged)
	}
	if snap.Cycles != 3 {
		t.Errorf("Cycles: got %d, want 3", snap.Cycles)
	}
	if snap.Bands.Low != 1 || snap.Bands.High != 2 || snap.Bands.Default != 0 {
		t.Errorf("Bands: got %+v", snap.Bands)
	}
}

func TestCounters(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})

	tr.RecordTransition()
	tr.RecordTransition()
	tr.RecordLogFailure()

	snap := tr.Snapshot()
	if snap.Transitions != 2 {
		t.Errorf("Transitions: got %d, want 2", snap.Transitions)
	}
	if snap.LogFailures != 1 {
		t.Errorf("LogFailures: got %d, want 1", snap.LogFailures)
	}
}

func TestSetRunningAndMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})

	tr.SetRunning(true)
	tr.SetMQTTConnected(true)
	snap := tr.Snapshot()
	if !snap.Running || !snap.MQTTConnected {
		t.Errorf("expected Running and MQTTConnected, got %v %v", snap.Running, snap.MQTTConnected)
	}

	tr.SetRunning(false)
	tr.SetMQTTConnected(false)
	snap = tr.Snapshot()
	if snap.Running || snap.MQTTConnected {
		t.Errorf("expected both false, got %v %v", snap.Running, snap.MQTTConnected)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "", Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})
	tr.Update(logic.Observation{Count: 1}, decide(t, 1), logic.StatusLow)

	snap1 := tr.Snapshot()

	tr.Update(logic.Observation{Count: 8}, decide(t, 8), logic.StatusHigh)

	// snap1 should still reflect old state
	if snap1.Count != 1 {
		t.Error("snapshot should be a copy; Count was modified")
	}
	if snap1.Bands.High != 0 {
		t.Error("snapshot should be a copy; Bands was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		RunID:         "run-1",
		Running:       true,
		Observed:      true,
		Count:         5,
		Decision:      decide(t, 5),
		LastLogged:    logic.StatusDefault,
		Cycles:        7,
		Transitions:   2,
		Bands:         logic.BandCounts{Low: 3, Default: 4},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        testConfig(),
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.State != "RUNNING" {
		t.Errorf("State: got %q, want RUNNING", parsed.Status.State)
	}
	if parsed.Status.Count == nil || *parsed.Status.Count != 5 {
		t.Errorf("Count: got %v, want 5", parsed.Status.Count)
	}
	if parsed.Status.Density != "DEFAULT" {
		t.Errorf("Density: got %q, want DEFAULT", parsed.Status.Density)
	}
	if parsed.Status.GreenDuration != 7 {
		t.Errorf("GreenDuration: got %d, want 7", parsed.Status.GreenDuration)
	}
	if parsed.Status.Color != "#00ff00" {
		t.Errorf("Color: got %q, want #00ff00", parsed.Status.Color)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Cycles != 7 || parsed.Status.Counts.Transitions != 2 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	if parsed.Status.Config.HighThreshold != 7 {
		t.Errorf("Config.HighThreshold: got %d, want 7", parsed.Status.Config.HighThreshold)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONBeforeFirstCycle(t *testing.T) {
	snap := Snapshot{
		LastLogged: logic.StatusStart,
		StartTime:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:        time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if status["crowd_count"] != nil {
		t.Errorf("crowd_count: got %v, want null", status["crowd_count"])
	}
	if status["density"] != "UNKNOWN" {
		t.Errorf("density: got %v, want UNKNOWN", status["density"])
	}
	if status["state"] != "STOPPED" {
		t.Errorf("state: got %v, want STOPPED", status["state"])
	}
	if status["last_logged"] != "START" {
		t.Errorf("last_logged: got %v, want START", status["last_logged"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Observed:  true,
		Count:     9,
		Decision:  decide(t, 9),
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config:    testConfig(),
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Density != "HIGH" {
		t.Errorf("Density: got %q, want HIGH", parsed.Status.Density)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "END_OF_STREAM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "END_OF_STREAM" {
		t.Errorf("Reason: got %q, want END_OF_STREAM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), "", Config{})
	d := decide(t, 4)
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.Observation{Count: i}, d, logic.StatusDefault)
			tr.RecordTransition()
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()

	if got := tr.Snapshot().Cycles; got != 1000 {
		t.Errorf("Cycles: got %d, want 1000", got)
	}
}
