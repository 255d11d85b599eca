// Package source provides observation sources with hardware abstraction.
// Real sources read counts from a detector subprocess, a serial counter, or
// a line stream; the fake source allows testing without any of them.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// ErrEndOfStream is returned by Next when the source has no more observations.
// It is a clean stop, not a failure.
var ErrEndOfStream = errors.New("end of stream")

// AcquisitionError is a hard failure of the source. It terminates the loop.
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire from %s: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Source yields one observation per control cycle.
type Source interface {
	// Next blocks until an observation is available, the stream ends
	// (ErrEndOfStream), the source fails (*AcquisitionError), or ctx is done
	// (ctx.Err()).
	Next(ctx context.Context) (logic.Observation, error)
	// Close releases the underlying device or process.
	Close() error
}

type result struct {
	count int
	err   error
}

// pump runs a blocking read function on its own goroutine so that Next can
// be abandoned when ctx is cancelled. Reads happen one at a time, only when a
// caller is waiting, so no observation is read ahead of the control loop.
type pump struct {
	read    func() (int, error)
	request chan struct{}
	results chan result
	done    chan struct{}
	started bool
	pending bool
	ended   error
}

func newPump(read func() (int, error)) *pump {
	return &pump{
		read:    read,
		request: make(chan struct{}),
		results: make(chan result, 1),
		done:    make(chan struct{}),
	}
}

func (p *pump) loop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.request:
		}
		n, err := p.read()
		p.results <- result{count: n, err: err}
		if err != nil {
			return
		}
	}
}

func (p *pump) next(ctx context.Context) (logic.Observation, error) {
	if p.ended != nil {
		return logic.Observation{}, p.ended
	}
	if err := ctx.Err(); err != nil {
		return logic.Observation{}, err
	}
	select {
	case <-p.done:
		return logic.Observation{}, ErrEndOfStream
	default:
	}
	if !p.started {
		p.started = true
		go p.loop()
	}
	// A read abandoned by a cancelled Next is still in flight; wait for it
	// instead of requesting another.
	if !p.pending {
		select {
		case p.request <- struct{}{}:
			p.pending = true
		case <-p.done:
			return logic.Observation{}, ErrEndOfStream
		case <-ctx.Done():
			return logic.Observation{}, ctx.Err()
		}
	}

	select {
	case r := <-p.results:
		p.pending = false
		if r.err != nil {
			p.ended = r.err
			return logic.Observation{}, r.err
		}
		return logic.Observation{Count: r.count}, nil
	case <-p.done:
		return logic.Observation{}, ErrEndOfStream
	case <-ctx.Done():
		return logic.Observation{}, ctx.Err()
	}
}

func (p *pump) stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
