package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// InventoryHistory is the append-only ledger of stock changes. The current
// quantity of an item always equals the sum of its history changes.
type InventoryHistory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`

	Change      decimal.Decimal           `gorm:"column:change;type:numeric(12,3);not null"`
	NewQuantity decimal.Decimal           `gorm:"column:new_quantity;type:numeric(12,3);not null"`
	ChangeType  enums.InventoryChangeType `gorm:"column:change_type;not null"`
	Source      string                    `gorm:"column:source;not null;default:manual"`
	SourceID    *uuid.UUID                `gorm:"column:source_id;type:uuid"`
	Note        *string                   `gorm:"column:note"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (h *InventoryHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
