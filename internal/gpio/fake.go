package gpio

// LampState is one Set call.
type LampState struct {
	Low     bool
	Default bool
	High    bool
}

// FakeLamps is a test double that records lamp states.
type FakeLamps struct {
	// States contains every state passed to Set, in order.
	States []LampState

	// SetError, if set, will be returned by Set()
	SetError error

	// CloseCalls counts Close invocations
	CloseCalls int
}

// NewFakeLamps creates a FakeLamps.
func NewFakeLamps() *FakeLamps {
	return &FakeLamps{}
}

// Set records the state.
func (f *FakeLamps) Set(low, def, high bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.States = append(f.States, LampState{Low: low, Default: def, High: high})
	return nil
}

// Close marks the lamps as closed.
func (f *FakeLamps) Close() error {
	f.CloseCalls++
	return nil
}

// Last returns the most recent state, or all-off if Set was never called.
func (f *FakeLamps) Last() LampState {
	if len(f.States) == 0 {
		return LampState{}
	}
	return f.States[len(f.States)-1]
}
