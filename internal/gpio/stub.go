//go:build !linux

package gpio

import "errors"

// RealLamps is not available on non-Linux platforms.
type RealLamps struct{}

// NewRealLamps returns an error on non-Linux platforms.
func NewRealLamps(chipName string, pins Pins) (*RealLamps, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (l *RealLamps) Set(low, def, high bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (l *RealLamps) Close() error {
	return nil
}
