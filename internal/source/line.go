package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// LineSource reads one decimal count per line. Blank lines and lines
// starting with '#' are skipped. EOF ends the stream.
type LineSource struct {
	name    string
	scanner *bufio.Scanner
	closer  io.Closer
	pump    *pump
	line    int
}

// NewLineSource reads counts from r. If r is an io.Closer it is closed by Close.
func NewLineSource(name string, r io.Reader) *LineSource {
	s := &LineSource{
		name:    name,
		scanner: bufio.NewScanner(r),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	s.pump = newPump(s.readCount)
	return s
}

func (s *LineSource) readCount() (int, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		n, err := strconv.Atoi(text)
		if err != nil {
			return 0, &AcquisitionError{Source: s.name, Err: fmt.Errorf("line %d: %w", s.line, err)}
		}
		return n, nil
	}
	if err := s.scanner.Err(); err != nil {
		return 0, &AcquisitionError{Source: s.name, Err: err}
	}
	return 0, ErrEndOfStream
}

// Next returns the next count.
func (s *LineSource) Next(ctx context.Context) (logic.Observation, error) {
	return s.pump.next(ctx)
}

// Close stops reading and closes the underlying reader if it has a Close method.
func (s *LineSource) Close() error {
	s.pump.stop()
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
