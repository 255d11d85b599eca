package gpio

import (
	"errors"
	"testing"

	"github.com/sweeney/crowd-signal/internal/logic"
)

func decision(s logic.Status) logic.Decision {
	return logic.Decision{Status: s}
}

func TestLampRendererLightsBand(t *testing.T) {
	lamps := NewFakeLamps()
	r := NewLampRenderer(lamps)

	tests := []struct {
		status logic.Status
		want   LampState
	}{
		{logic.StatusLow, LampState{Low: true}},
		{logic.StatusDefault, LampState{Default: true}},
		{logic.StatusHigh, LampState{High: true}},
	}
	for _, tc := range tests {
		if err := r.Render(logic.Observation{}, decision(tc.status)); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.status, err)
		}
		if got := lamps.Last(); got != tc.want {
			t.Errorf("%s: got %+v, want %+v", tc.status, got, tc.want)
		}
	}
}

func TestLampRendererOnlyWritesOnChange(t *testing.T) {
	lamps := NewFakeLamps()
	r := NewLampRenderer(lamps)

	for _, s := range []logic.Status{logic.StatusLow, logic.StatusLow, logic.StatusHigh, logic.StatusHigh, logic.StatusLow} {
		r.Render(logic.Observation{}, decision(s))
	}
	if len(lamps.States) != 3 {
		t.Errorf("expected 3 writes, got %d", len(lamps.States))
	}
}

func TestLampRendererRetriesAfterFailure(t *testing.T) {
	lamps := NewFakeLamps()
	lamps.SetError = errors.New("line busy")
	r := NewLampRenderer(lamps)

	if err := r.Render(logic.Observation{}, decision(logic.StatusHigh)); err == nil {
		t.Fatal("expected error")
	}

	lamps.SetError = nil
	if err := r.Render(logic.Observation{}, decision(logic.StatusHigh)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lamps.Last() != (LampState{High: true}) {
		t.Errorf("expected HIGH lit after recovery, got %+v", lamps.Last())
	}
}

func TestLampRendererClose(t *testing.T) {
	lamps := NewFakeLamps()
	r := NewLampRenderer(lamps)
	r.Close()
	if lamps.CloseCalls != 1 {
		t.Errorf("CloseCalls: got %d, want 1", lamps.CloseCalls)
	}
}
