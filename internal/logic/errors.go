package logic

import "fmt"

// ConfigurationError reports an invalid threshold or duration setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// InvalidInputError reports a count the detector should never produce.
type InvalidInputError struct {
	Count int
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: negative count %d", e.Count)
}
