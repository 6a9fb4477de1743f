package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// ProductAlias maps a normalized receipt name to a product. Aliases are
// learned whenever a fuzzy or manual match succeeds, so the next receipt with
// the same text resolves without fuzzy scoring.
type ProductAlias struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index;uniqueIndex:uq_product_aliases_product_alias"`
	Alias     string            `gorm:"column:alias;not null;uniqueIndex:uq_product_aliases_product_alias"`
	Status    enums.AliasStatus `gorm:"column:status;not null;default:unverified"`
	HitCount  int               `gorm:"column:hit_count;not null;default:0"`

	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (a *ProductAlias) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
