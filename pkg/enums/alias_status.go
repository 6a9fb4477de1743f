package enums

import "fmt"

// AliasStatus describes the allowed values for the `status` column in
// product_aliases. Aliases learned automatically start unverified.
type AliasStatus string

const (
	AliasStatusUnverified AliasStatus = "unverified"
	AliasStatusVerified   AliasStatus = "verified"
)

var validAliasStatuses = []AliasStatus{
	AliasStatusUnverified,
	AliasStatusVerified,
}

// IsValid reports whether the value matches the canonical alias status enum.
func (a AliasStatus) IsValid() bool {
	for _, candidate := range validAliasStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAliasStatus converts the raw string to AliasStatus.
func ParseAliasStatus(value string) (AliasStatus, error) {
	for _, candidate := range validAliasStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alias status %q", value)
}
