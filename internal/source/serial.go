package source

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// SerialOptions describes the serial connection to a people counter that
// prints one count per line.
type SerialOptions struct {
	BaudRate int
	DataBits int
	StopBits int
	Parity   string // N, E, or O
}

// Mode converts the options into a go.bug.st/serial mode, applying defaults
// (9600 8N1) for unset values.
func (o SerialOptions) Mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: o.BaudRate,
		DataBits: o.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if mode.BaudRate <= 0 {
		mode.BaudRate = 9600
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	if mode.DataBits < 5 || mode.DataBits > 8 {
		return nil, fmt.Errorf("invalid data bits %d: must be between 5 and 8", mode.DataBits)
	}

	switch o.StopBits {
	case 0, 1:
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", o.StopBits)
	}

	switch strings.ToUpper(strings.TrimSpace(o.Parity)) {
	case "", "N", "NONE":
	case "E", "EVEN":
		mode.Parity = serial.EvenParity
	case "O", "ODD":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return mode, nil
}

// SerialSource reads counts from a serial port.
type SerialSource struct {
	port  serial.Port
	lines *LineSource
}

// OpenSerial opens the serial device at path.
func OpenSerial(path string, opts SerialOptions) (*SerialSource, error) {
	mode, err := opts.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return &SerialSource{
		port:  port,
		lines: NewLineSource("serial:"+path, port),
	}, nil
}

// Next returns the next count printed by the counter.
func (s *SerialSource) Next(ctx context.Context) (logic.Observation, error) {
	return s.lines.Next(ctx)
}

// Close closes the port, unblocking any pending read.
func (s *SerialSource) Close() error {
	return s.lines.Close()
}
