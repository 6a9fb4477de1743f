package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// ReceiptLineItem is one product line extracted from a receipt. RawName keeps
// the text exactly as the OCR/parser produced it; NormalizedName is what the
// matcher worked with.
type ReceiptLineItem struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ReceiptID uuid.UUID  `gorm:"column:receipt_id;type:uuid;not null;index"`
	ProductID *uuid.UUID `gorm:"column:product_id;type:uuid;index"`

	RawName        string `gorm:"column:raw_name;not null"`
	NormalizedName string `gorm:"column:normalized_name;not null"`

	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric(12,3);not null;default:1"`
	Unit         string          `gorm:"column:unit;not null;default:szt"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	UnitDiscount decimal.Decimal `gorm:"column:unit_discount;type:numeric(12,2);not null;default:0"`
	LineTotal    decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null;default:0"`

	MatchType       enums.MatchType `gorm:"column:match_type;not null;default:created"`
	MatchConfidence float64         `gorm:"column:match_confidence;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (l *ReceiptLineItem) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
