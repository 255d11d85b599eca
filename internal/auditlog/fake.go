package auditlog

// FakeStore records appended entries for test assertions.
type FakeStore struct {
	// Entries contains every entry that was appended successfully.
	Entries []Entry
	// Attempts counts Append calls, including failed ones.
	Attempts int
	// AppendError, if set, will be returned by Append.
	AppendError error
	// CloseCalls counts Close invocations.
	CloseCalls int
}

// NewFakeStore creates a FakeStore for testing.
func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// Append records the entry.
func (f *FakeStore) Append(e Entry) error {
	f.Attempts++
	if f.AppendError != nil {
		return f.AppendError
	}
	f.Entries = append(f.Entries, e)
	return nil
}

// Close counts the call.
func (f *FakeStore) Close() error {
	f.CloseCalls++
	return nil
}
