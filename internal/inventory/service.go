package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
	pkgerrors "github.com/pkruczek/spizarka-backend/pkg/errors"
)

// Service exposes pantry stock operations. Every mutation writes both the
// stock row and a ledger entry in one transaction, keeping the invariant that
// an item's quantity equals the sum of its history.
type Service interface {
	Add(ctx context.Context, input AddInput) (*models.InventoryItem, error)
	AddTx(ctx context.Context, tx *gorm.DB, input AddInput) (*models.InventoryItem, error)
	Consume(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal, note *string) (*models.InventoryItem, error)
	Adjust(ctx context.Context, productID uuid.UUID, delta decimal.Decimal, note *string) (*models.InventoryItem, error)
	List(ctx context.Context) ([]models.InventoryItem, error)
	LowStock(ctx context.Context) ([]models.InventoryItem, error)
	History(ctx context.Context, productID uuid.UUID) ([]models.InventoryHistory, error)
	Summary(ctx context.Context) (*SummaryDTO, error)
}

// AddInput describes a stock increase, usually sourced from a receipt.
type AddInput struct {
	ProductID uuid.UUID
	Quantity  decimal.Decimal
	Unit      string
	Source    string
	SourceID  *uuid.UUID
}

// SummaryDTO aggregates the current pantry state.
type SummaryDTO struct {
	TotalProducts int             `json:"total_products"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	LowStockCount int             `json:"low_stock_count"`
}

type service struct {
	repo              *Repository
	dbClient          *db.Client
	lowStockThreshold decimal.Decimal
}

// NewService constructs an inventory service instance.
func NewService(repo *Repository, dbClient *db.Client, lowStockThreshold decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{
		repo:              repo,
		dbClient:          dbClient,
		lowStockThreshold: lowStockThreshold,
	}, nil
}

// Add increases stock and records a purchase ledger entry.
func (s *service) Add(ctx context.Context, input AddInput) (*models.InventoryItem, error) {
	var item *models.InventoryItem
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		item, err = s.AddTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// AddTx is Add inside a caller-owned transaction, so stock posting can commit
// or roll back together with the caller's writes.
func (s *service) AddTx(ctx context.Context, tx *gorm.DB, input AddInput) (*models.InventoryItem, error) {
	if input.Quantity.IsNegative() || input.Quantity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Source == "" {
		input.Source = "manual"
	}
	if input.Unit == "" {
		input.Unit = "szt"
	}

	txRepo := s.repo.WithTx(tx)

	current, err := txRepo.GetOrCreateItem(ctx, input.ProductID, input.Unit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load inventory item")
	}

	updated := current.Quantity.Add(input.Quantity)
	if err := txRepo.SetQuantity(ctx, input.ProductID, updated); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update quantity")
	}

	entry := &models.InventoryHistory{
		ProductID:   input.ProductID,
		Change:      input.Quantity,
		NewQuantity: updated,
		ChangeType:  enums.InventoryChangePurchase,
		Source:      input.Source,
		SourceID:    input.SourceID,
	}
	if err := txRepo.CreateHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert history")
	}

	current.Quantity = updated
	return current, nil
}

// Consume decreases stock. It refuses to go negative: nothing is written and
// a state conflict is returned instead.
func (s *service) Consume(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal, note *string) (*models.InventoryItem, error) {
	if quantity.IsNegative() || quantity.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var item *models.InventoryItem
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		current, err := txRepo.GetItem(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load inventory item")
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product has no stock")
		}

		updated := current.Quantity.Sub(quantity)
		if updated.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "not enough stock to consume")
		}

		if err := txRepo.SetQuantity(ctx, productID, updated); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update quantity")
		}

		entry := &models.InventoryHistory{
			ProductID:   productID,
			Change:      quantity.Neg(),
			NewQuantity: updated,
			ChangeType:  enums.InventoryChangeConsumption,
			Source:      "manual",
			Note:        note,
		}
		if err := txRepo.CreateHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert history")
		}

		current.Quantity = updated
		item = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Adjust applies a signed correction, clamping at zero.
func (s *service) Adjust(ctx context.Context, productID uuid.UUID, delta decimal.Decimal, note *string) (*models.InventoryItem, error) {
	if delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	var item *models.InventoryItem
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		current, err := txRepo.GetOrCreateItem(ctx, productID, "szt")
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load inventory item")
		}

		updated := current.Quantity.Add(delta)
		if updated.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "adjustment would make stock negative")
		}

		if err := txRepo.SetQuantity(ctx, productID, updated); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update quantity")
		}

		entry := &models.InventoryHistory{
			ProductID:   productID,
			Change:      delta,
			NewQuantity: updated,
			ChangeType:  enums.InventoryChangeAdjustment,
			Source:      "manual",
			Note:        note,
		}
		if err := txRepo.CreateHistory(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert history")
		}

		current.Quantity = updated
		item = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List returns all stocked items.
func (s *service) List(ctx context.Context) ([]models.InventoryItem, error) {
	return s.repo.ListItems(ctx)
}

// LowStock returns items at or below the configured threshold.
func (s *service) LowStock(ctx context.Context) ([]models.InventoryItem, error) {
	return s.repo.ListLowStock(ctx, s.lowStockThreshold)
}

// History returns the ledger for a product.
func (s *service) History(ctx context.Context, productID uuid.UUID) ([]models.InventoryHistory, error) {
	return s.repo.ListHistory(ctx, productID)
}

// Summary aggregates current stock levels.
func (s *service) Summary(ctx context.Context) (*SummaryDTO, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	summary := &SummaryDTO{TotalQuantity: decimal.Zero}
	for _, item := range items {
		summary.TotalProducts++
		summary.TotalQuantity = summary.TotalQuantity.Add(item.Quantity)
		if item.Quantity.LessThanOrEqual(s.lowStockThreshold) {
			summary.LowStockCount++
		}
	}
	return summary, nil
}
