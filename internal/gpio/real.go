//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLamps drives lamps on actual hardware using Linux GPIO character device.
type RealLamps struct {
	chip  *gpiocdev.Chip
	lines [3]*gpiocdev.Line // low, default, high
}

var lampNames = [3]string{"LOW", "DEFAULT", "HIGH"}

// NewRealLamps requests the lamp lines as outputs, initially off.
func NewRealLamps(chipName string, pins Pins) (*RealLamps, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	l := &RealLamps{chip: chip}
	for i, pin := range [3]int{pins.Low, pins.Default, pins.High} {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", lampNames[i], pin, err)
		}
		l.lines[i] = line
	}
	return l, nil
}

// Set drives the three lamps.
func (l *RealLamps) Set(low, def, high bool) error {
	for i, on := range [3]bool{low, def, high} {
		v := 0
		if on {
			v = 1
		}
		if err := l.lines[i].SetValue(v); err != nil {
			return fmt.Errorf("set %s lamp: %w", lampNames[i], err)
		}
	}
	return nil
}

// Close turns the lamps off and releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing so the lamps stay dark through shutdown/reboot.
func (l *RealLamps) Close() error {
	var errs []error

	for i, line := range l.lines {
		if line == nil {
			continue
		}
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("switch off %s lamp: %w", lampNames[i], err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", lampNames[i], err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", lampNames[i], err))
		}
		l.lines[i] = nil
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		l.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
