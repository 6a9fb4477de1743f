package enums

import "fmt"

// ErrorSeverity ranks how urgent a classified pipeline failure is.
type ErrorSeverity string

const (
	ErrorSeverityLow      ErrorSeverity = "low"
	ErrorSeverityMedium   ErrorSeverity = "medium"
	ErrorSeverityHigh     ErrorSeverity = "high"
	ErrorSeverityCritical ErrorSeverity = "critical"
)

var validErrorSeverities = []ErrorSeverity{
	ErrorSeverityLow,
	ErrorSeverityMedium,
	ErrorSeverityHigh,
	ErrorSeverityCritical,
}

// IsValid reports whether the value matches the canonical severity enum.
func (e ErrorSeverity) IsValid() bool {
	for _, candidate := range validErrorSeverities {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseErrorSeverity converts the raw string to ErrorSeverity.
func ParseErrorSeverity(value string) (ErrorSeverity, error) {
	for _, candidate := range validErrorSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid error severity %q", value)
}
