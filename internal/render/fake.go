package render

import "github.com/sweeney/crowd-signal/internal/logic"

// Frame is one rendered decision.
type Frame struct {
	Observation logic.Observation
	Decision    logic.Decision
}

// FakeRenderer records rendered frames.
type FakeRenderer struct {
	Frames []Frame

	// FailAt, if > 0, makes the Render call with that 1-based index return
	// RenderError.
	FailAt      int
	RenderError error

	Calls      int
	CloseCalls int
}

// NewFakeRenderer creates a FakeRenderer.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{}
}

// Render records the frame.
func (f *FakeRenderer) Render(obs logic.Observation, d logic.Decision) error {
	f.Calls++
	if f.FailAt > 0 && f.Calls == f.FailAt {
		return f.RenderError
	}
	f.Frames = append(f.Frames, Frame{Observation: obs, Decision: d})
	return nil
}

// Close counts the call.
func (f *FakeRenderer) Close() error {
	f.CloseCalls++
	return nil
}
