package enums

import "fmt"

// InventoryChangeType describes the allowed values for the `change_type`
// column in inventory_history.
type InventoryChangeType string

const (
	InventoryChangePurchase    InventoryChangeType = "purchase"
	InventoryChangeConsumption InventoryChangeType = "consumption"
	InventoryChangeAdjustment  InventoryChangeType = "adjustment"
	InventoryChangeExpired     InventoryChangeType = "expired"
)

var validInventoryChangeTypes = []InventoryChangeType{
	InventoryChangePurchase,
	InventoryChangeConsumption,
	InventoryChangeAdjustment,
	InventoryChangeExpired,
}

// IsValid reports whether the value matches the canonical change type enum.
func (i InventoryChangeType) IsValid() bool {
	for _, candidate := range validInventoryChangeTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInventoryChangeType converts the raw string to InventoryChangeType.
func ParseInventoryChangeType(value string) (InventoryChangeType, error) {
	for _, candidate := range validInventoryChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory change type %q", value)
}
