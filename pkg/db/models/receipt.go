package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// Receipt tracks a single uploaded receipt image through the processing
// pipeline. The row doubles as the resumable job record: status, current
// step, attempt counters and the last classified error all live here.
type Receipt struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ImagePath          string               `gorm:"column:image_path;not null"`
	ProcessedImagePath *string              `gorm:"column:processed_image_path"`
	Status             enums.ReceiptStatus  `gorm:"column:status;not null;default:pending"`
	CurrentStep        enums.ProcessingStep `gorm:"column:current_step;not null;default:uploaded"`

	StoreName    *string         `gorm:"column:store_name"`
	PurchaseDate *time.Time      `gorm:"column:purchase_date"`
	Total        decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Currency     enums.Currency  `gorm:"column:currency;not null;default:PLN"`

	RawText       *string         `gorm:"column:raw_text"`
	ExtractedData json.RawMessage `gorm:"column:extracted_data;type:jsonb"`
	OCRConfidence float64         `gorm:"column:ocr_confidence;not null;default:0"`
	OCRBackend    *string         `gorm:"column:ocr_backend"`

	Attempts        int `gorm:"column:attempts;not null;default:0"`
	PaidOCRAttempts int `gorm:"column:paid_ocr_attempts;not null;default:0"`

	LastError     *string              `gorm:"column:last_error"`
	ErrorCategory *enums.ErrorCategory `gorm:"column:error_category"`
	ErrorSeverity *enums.ErrorSeverity `gorm:"column:error_severity"`

	LineItems []ReceiptLineItem `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key app-side so the model works on both
// Postgres and sqlite.
func (r *Receipt) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
