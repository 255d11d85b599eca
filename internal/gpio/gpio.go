// Package gpio drives the signal lamps with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Lamps sets the three band lamps. Exactly one is lit at a time.
type Lamps interface {
	// Set drives the LOW, DEFAULT, and HIGH lamps.
	Set(low, def, high bool) error

	// Close turns the lamps off and releases GPIO resources.
	Close() error
}

// Pins holds the BCM line offsets for the lamps.
type Pins struct {
	Low     int `yaml:"low"`
	Default int `yaml:"default"`
	High    int `yaml:"high"`
}

// Pin definitions (BCM numbering)
const (
	DefaultPinLow     = 17 // cyan lamp
	DefaultPinDefault = 27 // green lamp
	DefaultPinHigh    = 22 // red lamp
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{Low: DefaultPinLow, Default: DefaultPinDefault, High: DefaultPinHigh}
}
