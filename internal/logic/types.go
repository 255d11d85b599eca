// Package logic contains pure business logic for crowd-density signal control.
// This package has NO external dependencies (no files, MQTT, GPIO, or clocks).
package logic

import "fmt"

// Status is the density band a count falls into.
type Status string

const (
	StatusLow     Status = "LOW"
	StatusDefault Status = "DEFAULT"
	StatusHigh    Status = "HIGH"

	// StatusStart is the sentinel held by ControllerState before the first
	// transition is logged. It is never produced by Classify.
	StatusStart Status = "START"
)

// Label returns the display form used on the overlay, e.g. "HIGH DENSITY".
func (s Status) Label() string {
	switch s {
	case StatusLow, StatusDefault, StatusHigh:
		return string(s) + " DENSITY"
	}
	return string(s)
}

// RGB is a display color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Display colors per band.
var (
	ColorAlert   = RGB{R: 255, G: 0, B: 0}   // red, HIGH
	ColorCalm    = RGB{R: 0, G: 255, B: 255} // cyan, LOW
	ColorNeutral = RGB{R: 0, G: 255, B: 0}   // green, DEFAULT
)

// Observation is one count produced by the detector for a control cycle.
type Observation struct {
	Count int
}

// Decision is the actuation output for one cycle.
type Decision struct {
	Status Status
	// GreenDuration is the next green phase length in whole seconds.
	GreenDuration int
	Color         RGB
}

// BandCounts tracks how many cycles fell into each band since startup.
type BandCounts struct {
	Low     int
	Default int
	High    int
}

// Add counts one cycle for the given status.
func (b *BandCounts) Add(s Status) {
	switch s {
	case StatusLow:
		b.Low++
	case StatusDefault:
		b.Default++
	case StatusHigh:
		b.High++
	}
}

// Total returns the number of counted cycles.
func (b BandCounts) Total() int {
	return b.Low + b.Default + b.High
}
