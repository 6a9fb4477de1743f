package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem tracks the current stock level per product.
type InventoryItem struct {
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null;default:0"`
	Unit      string          `gorm:"column:unit;not null;default:szt"`

	Product *Product `gorm:"foreignKey:ProductID"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
