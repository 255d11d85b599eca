package source

import (
	"context"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// FakeSource is a test double that returns scripted counts.
type FakeSource struct {
	// Counts contains scripted counts. Each call to Next consumes one.
	Counts []int
	// index tracks current position in Counts
	index int
	// FailAt, if > 0, makes the call with that 1-based index return FailErr.
	FailAt  int
	FailErr error
	// Block makes Next wait for ctx cancellation once Counts is exhausted,
	// instead of returning ErrEndOfStream.
	Block bool
	// OnNext, if set, is called before each Next with the 1-based call number.
	OnNext func(call int)
	// Calls counts Next invocations.
	Calls int
	// CloseCalls counts Close invocations.
	CloseCalls int
}

// NewFakeSource creates a FakeSource with the given counts.
func NewFakeSource(counts ...int) *FakeSource {
	return &FakeSource{Counts: counts}
}

// Next returns the next scripted count.
func (f *FakeSource) Next(ctx context.Context) (logic.Observation, error) {
	f.Calls++
	if f.OnNext != nil {
		f.OnNext(f.Calls)
	}
	if err := ctx.Err(); err != nil {
		return logic.Observation{}, err
	}
	if f.FailAt > 0 && f.Calls == f.FailAt {
		return logic.Observation{}, f.FailErr
	}
	if f.index >= len(f.Counts) {
		if f.Block {
			<-ctx.Done()
			return logic.Observation{}, ctx.Err()
		}
		return logic.Observation{}, ErrEndOfStream
	}
	n := f.Counts[f.index]
	f.index++
	return logic.Observation{Count: n}, nil
}

// Close counts the call.
func (f *FakeSource) Close() error {
	f.CloseCalls++
	return nil
}
