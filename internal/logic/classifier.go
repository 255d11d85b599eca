package logic

// Thresholds holds the static band limits and duration policy.
type Thresholds struct {
	// Low is X: counts <= Low are LOW.
	Low int
	// High is Y: counts > High are HIGH.
	High int

	BaseDuration int // seconds
	Increment    int // added for HIGH
	Decrement    int // subtracted for LOW
}

// DefaultThresholds returns the reference configuration (X=3, Y=7, 7s ±2/1).
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:          3,
		High:         7,
		BaseDuration: 7,
		Increment:    2,
		Decrement:    1,
	}
}

// Validate checks the band and duration invariants.
// Returns a *ConfigurationError naming the first offending field.
func (t Thresholds) Validate() error {
	if t.Low < 0 {
		return &ConfigurationError{Field: "low_threshold", Reason: "must be >= 0"}
	}
	if t.Low >= t.High {
		return &ConfigurationError{Field: "high_threshold", Reason: "must be greater than low_threshold"}
	}
	if t.BaseDuration <= 0 {
		return &ConfigurationError{Field: "base_green_duration_s", Reason: "must be > 0"}
	}
	if t.Increment <= 0 {
		return &ConfigurationError{Field: "increment_s", Reason: "must be > 0"}
	}
	if t.Decrement <= 0 {
		return &ConfigurationError{Field: "decrement_s", Reason: "must be > 0"}
	}
	if t.BaseDuration-t.Decrement <= 0 {
		return &ConfigurationError{Field: "decrement_s", Reason: "must be less than base_green_duration_s"}
	}
	return nil
}

// Classify maps a count to its band, green duration, and display color.
// HIGH is checked first. The low boundary is inclusive (count == Low is LOW)
// and the high boundary is exclusive (count == High is DEFAULT).
func Classify(count int, t Thresholds) (Decision, error) {
	if count < 0 {
		return Decision{}, &InvalidInputError{Count: count}
	}

	switch {
	case count > t.High:
		return Decision{
			Status:        StatusHigh,
			GreenDuration: t.BaseDuration + t.Increment,
			Color:         ColorAlert,
		}, nil
	case count <= t.Low:
		return Decision{
			Status:        StatusLow,
			GreenDuration: t.BaseDuration - t.Decrement,
			Color:         ColorCalm,
		}, nil
	default:
		return Decision{
			Status:        StatusDefault,
			GreenDuration: t.BaseDuration,
			Color:         ColorNeutral,
		}, nil
	}
}
