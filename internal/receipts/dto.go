package receipts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// ReceiptDTO is the API shape of a receipt.
type ReceiptDTO struct {
	ID            uuid.UUID            `json:"id"`
	Status        enums.ReceiptStatus  `json:"status"`
	CurrentStep   enums.ProcessingStep `json:"current_step"`
	Progress      int                  `json:"progress"`
	StoreName     *string              `json:"store_name"`
	PurchaseDate  *time.Time           `json:"purchase_date"`
	Total         decimal.Decimal      `json:"total"`
	Currency      enums.Currency       `json:"currency"`
	OCRConfidence float64              `json:"ocr_confidence"`
	OCRBackend    *string              `json:"ocr_backend"`
	LastError     *string              `json:"last_error,omitempty"`
	LineItems     []LineItemDTO        `json:"line_items"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// LineItemDTO is the API shape of one receipt line.
type LineItemDTO struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       *uuid.UUID      `json:"product_id"`
	RawName         string          `json:"raw_name"`
	NormalizedName  string          `json:"normalized_name"`
	Quantity        decimal.Decimal `json:"quantity"`
	Unit            string          `json:"unit"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	UnitDiscount    decimal.Decimal `json:"unit_discount"`
	LineTotal       decimal.Decimal `json:"line_total"`
	MatchType       enums.MatchType `json:"match_type"`
	MatchConfidence float64         `json:"match_confidence"`
}

// StatusDTO is the lightweight polling shape.
type StatusDTO struct {
	ID          uuid.UUID            `json:"id"`
	Status      enums.ReceiptStatus  `json:"status"`
	CurrentStep enums.ProcessingStep `json:"current_step"`
	Progress    int                  `json:"progress"`
	Attempts    int                  `json:"attempts"`
	LastError   *string              `json:"last_error,omitempty"`
}

// ConfirmItemInput is one reviewed line in a confirmation request.
type ConfirmItemInput struct {
	ProductID    *uuid.UUID      `json:"product_id"`
	Name         string          `json:"name" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity" validate:"required"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
}

// ConfirmInput is the reviewed receipt a user submits from review_pending.
type ConfirmInput struct {
	StoreName    *string            `json:"store_name"`
	PurchaseDate *time.Time         `json:"purchase_date"`
	Currency     *string            `json:"currency"`
	Items        []ConfirmItemInput `json:"items" validate:"required,min=1,dive"`
}

// StatsDTO summarizes receipts for the dashboard.
type StatsDTO struct {
	Total      int64                         `json:"total"`
	ByStatus   map[enums.ReceiptStatus]int64 `json:"by_status"`
	GrandTotal decimal.Decimal               `json:"grand_total"`
}

func toReceiptDTO(m *models.Receipt) *ReceiptDTO {
	dto := &ReceiptDTO{
		ID:            m.ID,
		Status:        m.Status,
		CurrentStep:   m.CurrentStep,
		Progress:      m.CurrentStep.Progress(),
		StoreName:     m.StoreName,
		PurchaseDate:  m.PurchaseDate,
		Total:         m.Total,
		Currency:      m.Currency,
		OCRConfidence: m.OCRConfidence,
		OCRBackend:    m.OCRBackend,
		LastError:     m.LastError,
		LineItems:     make([]LineItemDTO, 0, len(m.LineItems)),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, item := range m.LineItems {
		dto.LineItems = append(dto.LineItems, LineItemDTO{
			ID:              item.ID,
			ProductID:       item.ProductID,
			RawName:         item.RawName,
			NormalizedName:  item.NormalizedName,
			Quantity:        item.Quantity,
			Unit:            item.Unit,
			UnitPrice:       item.UnitPrice,
			UnitDiscount:    item.UnitDiscount,
			LineTotal:       item.LineTotal,
			MatchType:       item.MatchType,
			MatchConfidence: item.MatchConfidence,
		})
	}
	return dto
}

func toStatusDTO(m *models.Receipt) *StatusDTO {
	return &StatusDTO{
		ID:          m.ID,
		Status:      m.Status,
		CurrentStep: m.CurrentStep,
		Progress:    m.CurrentStep.Progress(),
		Attempts:    m.Attempts,
		LastError:   m.LastError,
	}
}
