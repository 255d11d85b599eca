package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// overlayLines is the number of lines drawn per decision.
const overlayLines = 3

// TextOptions controls how the overlay is drawn.
type TextOptions struct {
	// Redraw overwrites the previous overlay in place instead of scrolling.
	Redraw bool
	// CRLF ends lines with "\r\n", needed while the terminal is in raw mode.
	CRLF bool
}

// TextRenderer draws the overlay:
//
//	Crowd Count: 5
//	STATUS: DEFAULT DENSITY
//	NEXT GREEN: 7 SECONDS
//
// The status and duration lines take the decision color; HIGH is also bold.
type TextRenderer struct {
	mu    sync.Mutex
	out   *termenv.Output
	opts  TextOptions
	drawn bool
}

// NewTextRenderer writes the overlay to w. termenv options such as
// termenv.WithProfile select the color profile; by default it is detected
// from w.
func NewTextRenderer(w io.Writer, opts TextOptions, outOpts ...termenv.OutputOption) *TextRenderer {
	return &TextRenderer{
		out:  termenv.NewOutput(w, outOpts...),
		opts: opts,
	}
}

// Render draws one decision.
func (r *TextRenderer) Render(obs logic.Observation, d logic.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	color := r.out.Color(d.Color.Hex())
	status := r.out.String("STATUS: " + d.Status.Label()).Foreground(color)
	green := r.out.String(fmt.Sprintf("NEXT GREEN: %d SECONDS", d.GreenDuration)).Foreground(color)
	if d.Status == logic.StatusHigh {
		status = status.Bold()
		green = green.Bold()
	}

	eol := "\n"
	if r.opts.CRLF {
		eol = "\r\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Crowd Count: %d%s", obs.Count, eol)
	b.WriteString(status.String() + eol)
	b.WriteString(green.String() + eol)

	if r.opts.Redraw && r.drawn {
		r.out.ClearLines(overlayLines)
	}
	if _, err := io.WriteString(r.out, b.String()); err != nil {
		return fmt.Errorf("write overlay: %w", err)
	}
	r.drawn = true
	return nil
}

// Close resets terminal attributes.
func (r *TextRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drawn {
		r.out.Reset()
	}
	return nil
}
