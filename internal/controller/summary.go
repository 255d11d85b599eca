package controller

import (
	"fmt"
	"io"
	"time"
)

// Summary describes a finished run.
type Summary struct {
	Cycles      int
	Transitions int
	LogFailures int
	Elapsed     time.Duration
	Reason      Reason
}

// Rate returns cycles per second, or 0 when no time elapsed.
func (s Summary) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Cycles) / s.Elapsed.Seconds()
}

// Report writes the performance summary. The average rate line is omitted
// when no time elapsed.
func (s Summary) Report(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- PERFORMANCE SUMMARY ---")
	fmt.Fprintf(w, "Total frames processed: %d\n", s.Cycles)
	if s.Elapsed > 0 {
		fmt.Fprintf(w, "Average FPS: %.2f\n", s.Rate())
	}
	fmt.Fprintf(w, "Transitions logged: %d\n", s.Transitions)
	if s.LogFailures > 0 {
		fmt.Fprintf(w, "Log failures: %d\n", s.LogFailures)
	}
}
