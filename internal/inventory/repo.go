package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/db/models"
)

// Repository wires together inventory persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// GetItem loads the stock row for a product, or nil when the product has
// never been stocked.
func (r *Repository) GetItem(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).First(&item, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetOrCreateItem loads the stock row, creating an empty one when missing.
func (r *Repository) GetOrCreateItem(ctx context.Context, productID uuid.UUID, unit string) (*models.InventoryItem, error) {
	item, err := r.GetItem(ctx, productID)
	if err != nil {
		return nil, err
	}
	if item != nil {
		return item, nil
	}

	item = &models.InventoryItem{
		ProductID: productID,
		Quantity:  decimal.Zero,
		Unit:      unit,
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// SetQuantity overwrites the stock level of an existing item.
func (r *Repository) SetQuantity(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("product_id = ?", productID).
		Update("quantity", quantity).Error
}

// CreateHistory appends one ledger row.
func (r *Repository) CreateHistory(ctx context.Context, entry *models.InventoryHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListItems returns all stock rows with their products preloaded.
func (r *Repository) ListItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Order("updated_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListLowStock returns stock rows at or below the threshold.
func (r *Repository) ListLowStock(ctx context.Context, threshold decimal.Decimal) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("quantity <= ?", threshold).
		Order("quantity asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListHistory returns the ledger for a product, newest first.
func (r *Repository) ListHistory(ctx context.Context, productID uuid.UUID) ([]models.InventoryHistory, error) {
	var entries []models.InventoryHistory
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at desc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SumHistory adds up all ledger changes for a product.
func (r *Repository) SumHistory(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var entries []models.InventoryHistory
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Find(&entries).Error
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Change)
	}
	return sum, nil
}
