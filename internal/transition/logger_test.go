package transition

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/crowd-signal/internal/auditlog"
	"github.com/sweeney/crowd-signal/internal/logic"
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// feed classifies and records each count, returning the decisions made.
func feed(t *testing.T, l *Logger, counts []int) []logic.Decision {
	t.Helper()
	th := logic.DefaultThresholds()
	var out []logic.Decision
	for i, c := range counts {
		d, err := logic.Classify(c, th)
		if err != nil {
			t.Fatalf("cycle %d: classify: %v", i, err)
		}
		if _, err := l.Record(logic.Observation{Count: c}, d); err != nil {
			t.Fatalf("cycle %d: record: %v", i, err)
		}
		out = append(out, d)
	}
	return out
}

func TestEdgeTriggeredLogging(t *testing.T) {
	store := auditlog.NewFakeStore()
	l := NewLogger(store, fakeClock(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), time.Second))

	feed(t, l, []int{1, 1, 1, 5, 5, 9})

	// START->LOW, LOW->DEFAULT, DEFAULT->HIGH. The 1->5 and 5->9 edges plus
	// the first-ever transition.
	if len(store.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(store.Entries), store.Entries)
	}
	edges := store.Entries[1:]
	if edges[0].From != logic.StatusLow || edges[0].To != logic.StatusDefault || edges[0].Count != 5 {
		t.Errorf("edge 0: got %+v", edges[0])
	}
	if edges[1].From != logic.StatusDefault || edges[1].To != logic.StatusHigh || edges[1].Count != 9 {
		t.Errorf("edge 1: got %+v", edges[1])
	}
}

func TestScenarioFromReferenceConfig(t *testing.T) {
	store := auditlog.NewFakeStore()
	l := NewLogger(store, nil)

	decisions := feed(t, l, []int{2, 2, 9, 9, 9, 5})

	wantStatus := []logic.Status{logic.StatusLow, logic.StatusLow, logic.StatusHigh, logic.StatusHigh, logic.StatusHigh, logic.StatusDefault}
	wantDur := []int{6, 6, 9, 9, 9, 7}
	for i, d := range decisions {
		if d.Status != wantStatus[i] {
			t.Errorf("cycle %d: status: got %s, want %s", i, d.Status, wantStatus[i])
		}
		if d.GreenDuration != wantDur[i] {
			t.Errorf("cycle %d: duration: got %d, want %d", i, d.GreenDuration, wantDur[i])
		}
	}

	want := [][2]logic.Status{
		{logic.StatusStart, logic.StatusLow},
		{logic.StatusLow, logic.StatusHigh},
		{logic.StatusHigh, logic.StatusDefault},
	}
	if len(store.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(store.Entries))
	}
	for i, w := range want {
		e := store.Entries[i]
		if e.From != w[0] || e.To != w[1] {
			t.Errorf("entry %d: got %s->%s, want %s->%s", i, e.From, e.To, w[0], w[1])
		}
	}
	if store.Entries[1].GreenDuration != 9 || store.Entries[1].Count != 9 {
		t.Errorf("entry 1: got %+v", store.Entries[1])
	}
}

func TestFirstTransitionIsFromStart(t *testing.T) {
	for _, count := range []int{0, 5, 50} {
		store := auditlog.NewFakeStore()
		l := NewLogger(store, nil)
		feed(t, l, []int{count})

		if len(store.Entries) != 1 {
			t.Fatalf("count %d: expected 1 entry, got %d", count, len(store.Entries))
		}
		if store.Entries[0].From != logic.StatusStart {
			t.Errorf("count %d: From: got %s, want START", count, store.Entries[0].From)
		}
	}
}

func TestNoOpPathPerformsNoIO(t *testing.T) {
	store := auditlog.NewFakeStore()
	l := NewLogger(store, nil)
	feed(t, l, []int{5})
	before := l.State()

	feed(t, l, []int{4, 5, 6, 7, 5, 4})

	if store.Attempts != 1 {
		t.Errorf("expected 1 append attempt, got %d", store.Attempts)
	}
	if l.State() != before {
		t.Errorf("state changed: got %+v, want %+v", l.State(), before)
	}
}

func TestEntryTimestampAndDuration(t *testing.T) {
	start := time.Date(2026, 5, 1, 17, 30, 0, 0, time.UTC)
	store := auditlog.NewFakeStore()
	l := NewLogger(store, fakeClock(start, time.Minute))

	feed(t, l, []int{8})

	e := store.Entries[0]
	if !e.Timestamp.Equal(start) {
		t.Errorf("Timestamp: got %v, want %v", e.Timestamp, start)
	}
	if e.GreenDuration != 9 {
		t.Errorf("GreenDuration: got %d, want 9", e.GreenDuration)
	}
	if e.Count != 8 {
		t.Errorf("Count: got %d, want 8", e.Count)
	}
}

func TestAppendFailureStillAdvancesState(t *testing.T) {
	store := auditlog.NewFakeStore()
	store.AppendError = errors.New("disk full")
	l := NewLogger(store, nil)

	d, _ := logic.Classify(9, logic.DefaultThresholds())
	entry, err := l.Record(logic.Observation{Count: 9}, d)
	if err == nil {
		t.Fatal("expected error")
	}
	var appendErr *AppendError
	if !errors.As(err, &appendErr) {
		t.Fatalf("expected *AppendError, got %T", err)
	}
	if !errors.Is(err, store.AppendError) {
		t.Error("AppendError should unwrap to the store error")
	}
	if entry == nil || entry.To != logic.StatusHigh {
		t.Errorf("expected entry for HIGH, got %+v", entry)
	}
	if l.State().LastLogged != logic.StatusHigh {
		t.Errorf("state: got %s, want HIGH", l.State().LastLogged)
	}

	// Same status again: no retry, no append.
	store.AppendError = nil
	if _, err := l.Record(logic.Observation{Count: 10}, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Attempts != 1 {
		t.Errorf("expected 1 append attempt, got %d", store.Attempts)
	}
}

func TestRecordIfChangedIsFunctional(t *testing.T) {
	store := auditlog.NewFakeStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	state := logic.NewControllerState()
	d, _ := logic.Classify(2, logic.DefaultThresholds())

	next, entry, err := RecordIfChanged(store, now, logic.Observation{Count: 2}, d, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry")
	}
	if state.LastLogged != logic.StatusStart {
		t.Error("input state must not be mutated")
	}
	if next.LastLogged != logic.StatusLow {
		t.Errorf("next: got %s, want LOW", next.LastLogged)
	}

	again, entry, err := RecordIfChanged(store, now, logic.Observation{Count: 1}, d, next)
	if err != nil || entry != nil {
		t.Errorf("expected no-op, got entry=%v err=%v", entry, err)
	}
	if again != next {
		t.Errorf("no-op changed state: %+v", again)
	}
}
