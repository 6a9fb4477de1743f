package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// Repository wires together catalog persistence helpers.
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

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByNormalizedName returns the active product whose normalized name
// matches exactly, or nil when none exists.
func (r *Repository) FindByNormalizedName(ctx context.Context, normalized string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("normalized_name = ? AND is_active = ?", normalized, true).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByAlias resolves a learned alias to its product, or nil when the alias
// is unknown.
func (r *Repository) FindByAlias(ctx context.Context, alias string) (*models.Product, error) {
	var record models.ProductAlias
	err := r.db.WithContext(ctx).
		Where("alias = ?", alias).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, record.ProductID)
}

// ListActive returns all active products for fuzzy candidate scoring.
func (r *Repository) ListActive(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("normalized_name asc").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// FindAnyByNormalizedName matches the normalized name regardless of the
// active flag, so ghost creation can reuse an existing ghost.
func (r *Repository) FindAnyByNormalizedName(ctx context.Context, normalized string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("normalized_name = ?", normalized).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateGhost inserts a placeholder product for an unmatched receipt line.
// Ghosts stay inactive, and out of the match pool, until curated.
func (r *Repository) CreateGhost(ctx context.Context, name, normalized, unit string, categoryID *uuid.UUID) (*models.Product, error) {
	product := &models.Product{
		Name:           name,
		NormalizedName: normalized,
		CategoryID:     categoryID,
		Unit:           unit,
		IsGhost:        true,
		IsActive:       false,
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// UpsertAlias records that alias resolved to productID. Aliases are unique
// per product; an existing row gets its hit count bumped, new ones start
// unverified.
func (r *Repository) UpsertAlias(ctx context.Context, productID uuid.UUID, alias string) error {
	now := time.Now().UTC()

	var existing models.ProductAlias
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND alias = ?", productID, alias).
		First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).
			Model(&existing).
			Updates(map[string]any{
				"hit_count":    gorm.Expr("hit_count + 1"),
				"last_seen_at": now,
			}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	record := &models.ProductAlias{
		ProductID:  productID,
		Alias:      alias,
		Status:     enums.AliasStatusUnverified,
		HitCount:   1,
		LastSeenAt: &now,
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// Promote turns a ghost product into a curated catalog entry, putting it
// back into the match pool.
func (r *Repository) Promote(ctx context.Context, productID uuid.UUID, name string, categoryID *uuid.UUID) error {
	updates := map[string]any{
		"is_ghost":  false,
		"is_active": true,
	}
	if name != "" {
		updates["name"] = name
	}
	if categoryID != nil {
		updates["category_id"] = *categoryID
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(updates).Error
}

// GetOrCreateCategory resolves a category by name, creating it when missing.
func (r *Repository) GetOrCreateCategory(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	category = models.Category{Name: name}
	if err := r.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}
