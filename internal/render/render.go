// Package render presents each decision to the operator. The text renderer
// draws the overlay on a terminal; other renderers (GPIO lamps) live with
// their hardware packages and satisfy the same interface.
package render

import (
	"errors"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// Renderer presents one decision. A Render error is fatal to the loop.
type Renderer interface {
	Render(obs logic.Observation, d logic.Decision) error
	Close() error
}

type multi []Renderer

// Multi renders to every renderer in order. It stops at the first error.
func Multi(renderers ...Renderer) Renderer {
	if len(renderers) == 1 {
		return renderers[0]
	}
	return multi(renderers)
}

func (m multi) Render(obs logic.Observation, d logic.Decision) error {
	for _, r := range m {
		if err := r.Render(obs, d); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
