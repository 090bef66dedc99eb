package enums

import (
	"fmt"
	"strings"
)

// ValidationMode decides whether an invalid order request blocks submission.
type ValidationMode string

const (
	ValidationModeStrict   ValidationMode = "strict"
	ValidationModeAdvisory ValidationMode = "advisory"
)

// IsValid reports whether the value is a known ValidationMode.
func (m ValidationMode) IsValid() bool {
	return m == ValidationModeStrict || m == ValidationModeAdvisory
}

// Blocks reports whether failures stop the submission.
func (m ValidationMode) Blocks() bool {
	return m != ValidationModeAdvisory
}

// ParseValidationMode converts raw input into a ValidationMode.
func ParseValidationMode(value string) (ValidationMode, error) {
	mode := ValidationMode(strings.ToLower(strings.TrimSpace(value)))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid validation mode %q", value)
	}
	return mode, nil
}
