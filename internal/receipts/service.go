package receipts

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/internal/matcher"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
	pkgerrors "github.com/pkruczek/spizarka-backend/pkg/errors"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

// Service exposes the receipt lifecycle: upload, inspect, confirm after
// review, retry after failure, delete.
type Service interface {
	Upload(ctx context.Context, file io.Reader, filename string) (*ReceiptDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ReceiptDTO, error)
	List(ctx context.Context, status *enums.ReceiptStatus, limit, offset int) ([]ReceiptDTO, error)
	Status(ctx context.Context, id uuid.UUID) (*StatusDTO, error)
	Confirm(ctx context.Context, id uuid.UUID, input ConfirmInput) (*ReceiptDTO, error)
	Retry(ctx context.Context, id uuid.UUID) (*StatusDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*StatsDTO, error)
}

// Enqueuer pushes a receipt onto the processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, receiptID uuid.UUID, attempt int) error
}

type imageStore interface {
	Save(r io.Reader, originalName string) (string, error)
	Remove(path string) error
}

type inventoryAdder interface {
	AddTx(ctx context.Context, tx *gorm.DB, input inventory.AddInput) (*models.InventoryItem, error)
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	store     imageStore
	queue     Enqueuer
	inventory inventoryAdder
	logg      *logger.Logger
}

// NewService constructs a receipt service instance.
func NewService(repo *Repository, dbClient *db.Client, store imageStore, queue Enqueuer, inv inventoryAdder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if store == nil {
		return nil, fmt.Errorf("image store required")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{
		repo:      repo,
		dbClient:  dbClient,
		store:     store,
		queue:     queue,
		inventory: inv,
		logg:      logg,
	}, nil
}

// Upload stores the image, creates the pending receipt and queues it for
// processing.
func (s *service) Upload(ctx context.Context, file io.Reader, filename string) (*ReceiptDTO, error) {
	path, err := s.store.Save(file, filename)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing receipt image")
	}

	receipt := &models.Receipt{
		ImagePath:   path,
		Status:      enums.ReceiptStatusPending,
		CurrentStep: enums.StepUploaded,
		Currency:    enums.CurrencyPLN,
		Total:       decimal.Zero,
	}
	if _, err := s.repo.Create(ctx, receipt); err != nil {
		_ = s.store.Remove(path)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert receipt")
	}

	if err := s.queue.Enqueue(ctx, receipt.ID, 0); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing receipt")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithReceiptID(ctx, receipt.ID.String()), "receipt uploaded")
	}
	return toReceiptDTO(receipt), nil
}

// Get returns the full receipt with line items.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*ReceiptDTO, error) {
	receipt, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}
	return toReceiptDTO(receipt), nil
}

// List returns receipts, optionally filtered by status.
func (s *service) List(ctx context.Context, status *enums.ReceiptStatus, limit, offset int) ([]ReceiptDTO, error) {
	receipts, err := s.repo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list receipts")
	}
	dtos := make([]ReceiptDTO, 0, len(receipts))
	for i := range receipts {
		dtos = append(dtos, *toReceiptDTO(&receipts[i]))
	}
	return dtos, nil
}

// Status returns the lightweight polling view.
func (s *service) Status(ctx context.Context, id uuid.UUID) (*StatusDTO, error) {
	receipt, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStatusDTO(receipt), nil
}

// Confirm finalizes a reviewed receipt. Only receipts waiting for review can
// be confirmed; the submitted items replace whatever the pipeline extracted
// and matched inventory is posted.
func (s *service) Confirm(ctx context.Context, id uuid.UUID, input ConfirmInput) (*ReceiptDTO, error) {
	receipt, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status != enums.ReceiptStatusReviewPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("receipt in status %s cannot be confirmed", receipt.Status))
	}

	items := make([]models.ReceiptLineItem, 0, len(input.Items))
	total := decimal.Zero
	for _, in := range input.Items {
		if in.Quantity.IsNegative() || in.Quantity.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		discounted := in.UnitPrice.Sub(in.UnitDiscount)
		if discounted.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds unit price")
		}
		lineTotal := discounted.Mul(in.Quantity).Round(2)
		total = total.Add(lineTotal)

		unit := in.Unit
		if unit == "" {
			unit = "szt"
		}
		items = append(items, models.ReceiptLineItem{
			ProductID:       in.ProductID,
			RawName:         in.Name,
			NormalizedName:  matcher.Normalize(in.Name),
			Quantity:        in.Quantity,
			Unit:            unit,
			UnitPrice:       in.UnitPrice,
			UnitDiscount:    in.UnitDiscount,
			LineTotal:       lineTotal,
			MatchType:       enums.MatchTypeManual,
			MatchConfidence: 1.0,
		})
	}

	fields := map[string]any{
		"status":       enums.ReceiptStatusCompleted,
		"current_step": enums.StepDone,
		"total":        total,
		"last_error":   nil,
	}
	if input.StoreName != nil {
		fields["store_name"] = *input.StoreName
	}
	if input.PurchaseDate != nil {
		fields["purchase_date"] = *input.PurchaseDate
	}
	if input.Currency != nil {
		currency, err := enums.ParseCurrency(*input.Currency)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		fields["currency"] = currency
	}

	// Line items, the status flip and the stock posts commit together; a
	// failed post leaves the receipt in review_pending.
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ReplaceLineItems(ctx, id, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: replace line items")
		}
		if err := txRepo.UpdateFields(ctx, id, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update receipt")
		}
		for _, item := range items {
			if item.ProductID == nil {
				continue
			}
			if _, err := s.inventory.AddTx(ctx, tx, inventory.AddInput{
				ProductID: *item.ProductID,
				Quantity:  item.Quantity,
				Unit:      item.Unit,
				Source:    "receipt",
				SourceID:  &id,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "posting inventory")
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Retry requeues a failed receipt. The paid OCR budget spent on earlier
// attempts stays spent.
func (s *service) Retry(ctx context.Context, id uuid.UUID) (*StatusDTO, error) {
	receipt, err := s.mustFind(ctx, id)
	if err != nil {
		return nil, err
	}
	if receipt.Status != enums.ReceiptStatusError && receipt.Status != enums.ReceiptStatusManualReview {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("receipt in status %s cannot be retried", receipt.Status))
	}

	fields := map[string]any{
		"status":       enums.ReceiptStatusPending,
		"current_step": enums.StepUploaded,
		"attempts":     0,
		"last_error":   nil,
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reset receipt")
	}

	if err := s.queue.Enqueue(ctx, id, 0); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queueing receipt")
	}
	return s.Status(ctx, id)
}

// Delete removes a receipt and its stored images. Receipts currently being
// processed cannot be deleted.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	receipt, err := s.mustFind(ctx, id)
	if err != nil {
		return err
	}
	if receipt.Status == enums.ReceiptStatusProcessing {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "receipt is processing and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete receipt")
	}

	if err := s.store.Remove(receipt.ImagePath); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("failed to remove image %s: %v", receipt.ImagePath, err))
	}
	if receipt.ProcessedImagePath != nil {
		if err := s.store.Remove(*receipt.ProcessedImagePath); err != nil && s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("failed to remove processed image: %v", err))
		}
	}
	return nil
}

// Stats aggregates receipt counts and completed spend.
func (s *service) Stats(ctx context.Context) (*StatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count receipts")
	}
	grandTotal, err := s.repo.SumCompletedTotal(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: sum totals")
	}

	stats := &StatsDTO{ByStatus: counts, GrandTotal: grandTotal}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *service) mustFind(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	receipt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load receipt")
	}
	if receipt == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
	}
	return receipt, nil
}
