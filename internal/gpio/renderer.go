package gpio

import (
	"fmt"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// LampRenderer lights the lamp matching each decision's band. The lines are
// only written when the band changes.
type LampRenderer struct {
	lamps Lamps
	lit   logic.Status
}

// NewLampRenderer wraps lamps as a renderer.
func NewLampRenderer(lamps Lamps) *LampRenderer {
	return &LampRenderer{lamps: lamps}
}

// Render lights the lamp for d.Status.
func (r *LampRenderer) Render(_ logic.Observation, d logic.Decision) error {
	if d.Status == r.lit {
		return nil
	}
	low := d.Status == logic.StatusLow
	def := d.Status == logic.StatusDefault
	high := d.Status == logic.StatusHigh
	if err := r.lamps.Set(low, def, high); err != nil {
		return fmt.Errorf("lamps: %w", err)
	}
	r.lit = d.Status
	return nil
}

// Close releases the lamps.
func (r *LampRenderer) Close() error {
	return r.lamps.Close()
}
