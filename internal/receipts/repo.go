package receipts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// Repository wires together receipt persistence helpers.
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

// Create inserts a new receipt row.
func (r *Repository) Create(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error) {
	if err := r.db.WithContext(ctx).Create(receipt).Error; err != nil {
		return nil, err
	}
	return receipt, nil
}

// FindByID loads a receipt with its line items.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&receipt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// List returns receipts newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status *enums.ReceiptStatus, limit, offset int) ([]models.Receipt, error) {
	q := r.db.WithContext(ctx).Order("created_at desc")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var receipts []models.Receipt
	if err := q.Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// UpdateFields applies a partial update to a receipt row.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ReplaceLineItems deletes existing line items and inserts the new set.
func (r *Repository) ReplaceLineItems(ctx context.Context, receiptID uuid.UUID, items []models.ReceiptLineItem) error {
	if err := r.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Delete(&models.ReceiptLineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ReceiptID = receiptID
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// Delete removes a receipt and, via FK cascade, its line items.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Receipt{}, "id = ?", id).Error
}

// SumCompletedTotal adds up the totals of all completed receipts.
func (r *Repository) SumCompletedTotal(ctx context.Context) (decimal.Decimal, error) {
	var raw float64
	err := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("status = ?", enums.ReceiptStatusCompleted).
		Select("COALESCE(SUM(total), 0)").
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(raw), nil
}

// CountByStatus returns how many receipts sit in each status.
func (r *Repository) CountByStatus(ctx context.Context) (map[enums.ReceiptStatus]int64, error) {
	type row struct {
		Status enums.ReceiptStatus
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[enums.ReceiptStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}
