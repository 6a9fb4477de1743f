package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a pantry catalog entry. Ghost products are created automatically
// when a receipt line matched nothing; they stay inactive until curated.
type Product struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name           string     `gorm:"column:name;not null"`
	NormalizedName string     `gorm:"column:normalized_name;not null;uniqueIndex:uq_products_normalized_name"`
	CategoryID     *uuid.UUID `gorm:"column:category_id;type:uuid;index"`
	Unit           string     `gorm:"column:unit;not null;default:szt"`
	IsGhost        bool       `gorm:"column:is_ghost;not null;default:false"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`

	Category *Category      `gorm:"foreignKey:CategoryID"`
	Aliases  []ProductAlias `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
