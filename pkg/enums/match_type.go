package enums

import "fmt"

// MatchType records how a receipt line item was linked to a catalog product.
type MatchType string

const (
	MatchTypeExact   MatchType = "exact"
	MatchTypeAlias   MatchType = "alias"
	MatchTypeFuzzy   MatchType = "fuzzy"
	MatchTypeCreated MatchType = "created"
	MatchTypeManual  MatchType = "manual"
)

var validMatchTypes = []MatchType{
	MatchTypeExact,
	MatchTypeAlias,
	MatchTypeFuzzy,
	MatchTypeCreated,
	MatchTypeManual,
}

// IsValid reports whether the value matches the canonical match type enum.
func (m MatchType) IsValid() bool {
	for _, candidate := range validMatchTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMatchType converts the raw string to MatchType.
func ParseMatchType(value string) (MatchType, error) {
	for _, candidate := range validMatchTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid match type %q", value)
}
