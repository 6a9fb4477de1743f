package enums

import "fmt"

// ErrorCategory classifies a pipeline failure by the subsystem that produced it.
type ErrorCategory string

const (
	ErrorCategoryOCR        ErrorCategory = "ocr"
	ErrorCategoryParsing    ErrorCategory = "parsing"
	ErrorCategoryMatching   ErrorCategory = "matching"
	ErrorCategoryInventory  ErrorCategory = "inventory"
	ErrorCategoryFile       ErrorCategory = "file"
	ErrorCategoryNetwork    ErrorCategory = "network"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryMemory     ErrorCategory = "memory"
	ErrorCategoryUnknown    ErrorCategory = "unknown"
)

var validErrorCategories = []ErrorCategory{
	ErrorCategoryOCR,
	ErrorCategoryParsing,
	ErrorCategoryMatching,
	ErrorCategoryInventory,
	ErrorCategoryFile,
	ErrorCategoryNetwork,
	ErrorCategoryValidation,
	ErrorCategoryTimeout,
	ErrorCategoryMemory,
	ErrorCategoryUnknown,
}

// IsValid reports whether the value matches the canonical error category enum.
func (e ErrorCategory) IsValid() bool {
	for _, candidate := range validErrorCategories {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseErrorCategory converts the raw string to ErrorCategory.
func ParseErrorCategory(value string) (ErrorCategory, error) {
	for _, candidate := range validErrorCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid error category %q", value)
}
