package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/internal/matcher"
	"github.com/pkruczek/spizarka-backend/internal/ocr"
	"github.com/pkruczek/spizarka-backend/internal/parser"
	"github.com/pkruczek/spizarka-backend/internal/receipts"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
	"github.com/pkruczek/spizarka-backend/pkg/metrics"
)

// TextExtractor is the OCR surface the orchestrator needs.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string, paidBudget int) (ocr.Extraction, error)
}

// DelayedEnqueuer schedules a retry attempt after a backoff delay.
type DelayedEnqueuer interface {
	EnqueueDelayed(ctx context.Context, receiptID uuid.UUID, attempt int, delay time.Duration) error
}

type inventoryAdder interface {
	Add(ctx context.Context, input inventory.AddInput) (*models.InventoryItem, error)
}

// Orchestrator drives one receipt through OCR, parsing, matching and
// finalization. Stage outputs are persisted as they land, so a crashed or
// retried run resumes from the last completed stage instead of paying for
// OCR and parsing again.
type Orchestrator struct {
	repo       *receipts.Repository
	extractor  TextExtractor
	parser     parser.Service
	matcher    matcher.Service
	inventory  inventoryAdder
	queue      DelayedEnqueuer
	notifier   Notifier
	metrics    *metrics.PipelineMetrics
	logg       *logger.Logger
	cfg        config.PipelineConfig
	ocrBudget  int
	preprocess func(string) (string, error)
}

// Option tweaks orchestrator construction.
type Option func(*Orchestrator)

// WithPreprocessor replaces the image preprocessing step.
func WithPreprocessor(fn func(string) (string, error)) Option {
	return func(o *Orchestrator) { o.preprocess = fn }
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	repo *receipts.Repository,
	extractor TextExtractor,
	parserSvc parser.Service,
	matcherSvc matcher.Service,
	inv inventoryAdder,
	queue DelayedEnqueuer,
	notifier Notifier,
	m *metrics.PipelineMetrics,
	logg *logger.Logger,
	cfg config.PipelineConfig,
	paidOCRBudget int,
	opts ...Option,
) (*Orchestrator, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("ocr extractor required")
	}
	if parserSvc == nil {
		return nil, fmt.Errorf("parser service required")
	}
	if matcherSvc == nil {
		return nil, fmt.Errorf("matcher service required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	o := &Orchestrator{
		repo:       repo,
		extractor:  extractor,
		parser:     parserSvc,
		matcher:    matcherSvc,
		inventory:  inv,
		queue:      queue,
		notifier:   notifier,
		metrics:    m,
		logg:       logg,
		cfg:        cfg,
		ocrBudget:  paidOCRBudget,
		preprocess: ocr.Preprocess,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Process runs one attempt for the given receipt. attempt is zero-based; a
// recoverable failure schedules the next attempt with exponential backoff
// until the attempt limit is reached.
func (o *Orchestrator) Process(ctx context.Context, receiptID uuid.UUID, attempt int) error {
	if o.logg != nil {
		ctx = o.logg.WithReceiptID(ctx, receiptID.String())
	}

	receipt, err := o.repo.FindByID(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("loading receipt: %w", err)
	}
	if receipt == nil {
		if o.logg != nil {
			o.logg.Warn(ctx, "queued receipt no longer exists, dropping")
		}
		return nil
	}
	switch receipt.Status {
	case enums.ReceiptStatusCompleted, enums.ReceiptStatusReviewPending:
		if o.logg != nil {
			o.logg.Info(ctx, fmt.Sprintf("receipt already %s, skipping", receipt.Status))
		}
		return nil
	}

	if err := o.update(ctx, receiptID, map[string]any{
		"status":   enums.ReceiptStatusProcessing,
		"attempts": attempt + 1,
	}); err != nil {
		return err
	}
	receipt.Status = enums.ReceiptStatusProcessing
	receipt.Attempts = attempt + 1

	if err := o.runStages(ctx, receipt); err != nil {
		return o.fail(ctx, receipt, attempt, err)
	}
	return nil
}

func (o *Orchestrator) runStages(ctx context.Context, receipt *models.Receipt) error {
	rawText, err := o.stageOCR(ctx, receipt)
	if err != nil {
		return err
	}

	parsed, err := o.stageParse(ctx, receipt, rawText)
	if err != nil {
		return err
	}

	items, err := o.stageMatch(ctx, receipt, parsed)
	if err != nil {
		return err
	}

	return o.finalize(ctx, receipt, parsed, items)
}

// stageOCR extracts text from the receipt image. A previous attempt's text is
// reused so retries never re-spend the paid budget on a stage that already
// succeeded.
func (o *Orchestrator) stageOCR(ctx context.Context, receipt *models.Receipt) (string, error) {
	if receipt.RawText != nil && *receipt.RawText != "" {
		return *receipt.RawText, nil
	}

	if err := o.setStep(ctx, receipt, enums.StepOCRInProgress); err != nil {
		return "", err
	}
	start := time.Now()

	imagePath := receipt.ImagePath
	if receipt.ProcessedImagePath != nil {
		imagePath = *receipt.ProcessedImagePath
	} else if processed, err := o.preprocess(receipt.ImagePath); err != nil {
		// OCR can still read the original, just less reliably.
		if o.logg != nil {
			o.logg.Warn(ctx, fmt.Sprintf("preprocessing failed, using original image: %v", err))
		}
	} else {
		imagePath = processed
		if err := o.update(ctx, receipt.ID, map[string]any{"processed_image_path": processed}); err != nil {
			return "", err
		}
		receipt.ProcessedImagePath = &processed
	}

	budget := o.ocrBudget - receipt.PaidOCRAttempts
	if budget < 0 {
		budget = 0
	}

	extraction, ocrErr := o.extractor.ExtractText(ctx, imagePath, budget)
	if extraction.PaidAttempts > 0 {
		spent := receipt.PaidOCRAttempts + extraction.PaidAttempts
		if err := o.update(ctx, receipt.ID, map[string]any{"paid_ocr_attempts": spent}); err != nil {
			return "", err
		}
		receipt.PaidOCRAttempts = spent
	}
	o.observeStage("ocr", start, ocrErr)
	if ocrErr != nil {
		return "", ocrErr
	}

	if err := o.update(ctx, receipt.ID, map[string]any{
		"raw_text":       extraction.Text,
		"ocr_confidence": extraction.Confidence,
		"ocr_backend":    extraction.Backend,
	}); err != nil {
		return "", err
	}
	receipt.RawText = &extraction.Text

	if err := o.setStep(ctx, receipt, enums.StepOCRCompleted); err != nil {
		return "", err
	}
	return extraction.Text, nil
}

// stageParse turns OCR text into a structured receipt, reusing the stored
// result when a previous attempt already parsed it.
func (o *Orchestrator) stageParse(ctx context.Context, receipt *models.Receipt, rawText string) (*parser.Receipt, error) {
	if len(receipt.ExtractedData) > 0 {
		var cached parser.Receipt
		if err := json.Unmarshal(receipt.ExtractedData, &cached); err == nil && len(cached.Products) > 0 {
			return &cached, nil
		}
	}

	if err := o.setStep(ctx, receipt, enums.StepParsingInProgress); err != nil {
		return nil, err
	}
	start := time.Now()

	parsed, parseErr := o.parser.Parse(ctx, rawText)
	o.observeStage("parsing", start, parseErr)
	if parseErr != nil {
		return nil, parseErr
	}

	data, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("encoding parsed receipt: %w", err)
	}
	fields := map[string]any{"extracted_data": data}
	if parsed.StoreName != "" {
		fields["store_name"] = parsed.StoreName
	}
	if date := parsePurchaseDate(parsed.Date); date != nil {
		fields["purchase_date"] = *date
	}
	if currency, err := enums.ParseCurrency(parsed.Currency); err == nil {
		fields["currency"] = currency
	}
	if err := o.update(ctx, receipt.ID, fields); err != nil {
		return nil, err
	}
	receipt.ExtractedData = data

	if err := o.setStep(ctx, receipt, enums.StepParsingCompleted); err != nil {
		return nil, err
	}
	return parsed, nil
}

// stageMatch links parsed products to the catalog and rebuilds the line
// items. Matching always re-runs: the catalog may have learned new aliases
// since the last attempt.
func (o *Orchestrator) stageMatch(ctx context.Context, receipt *models.Receipt, parsed *parser.Receipt) ([]models.ReceiptLineItem, error) {
	if len(parsed.Products) == 0 {
		return nil, parser.ErrNoProducts
	}

	if err := o.setStep(ctx, receipt, enums.StepMatchingInProgress); err != nil {
		return nil, err
	}
	start := time.Now()

	names := make([]string, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		names = append(names, p.Name)
	}

	matches, matchErr := o.matcher.BatchMatch(ctx, names)
	o.observeStage("matching", start, matchErr)
	if matchErr != nil {
		return nil, matchErr
	}

	items := make([]models.ReceiptLineItem, 0, len(parsed.Products))
	for i, p := range parsed.Products {
		m := matches[i]
		item := models.ReceiptLineItem{
			RawName:         p.Name,
			NormalizedName:  m.NormalizedName,
			Quantity:        decimal.NewFromFloat(p.Quantity),
			Unit:            p.Unit,
			UnitPrice:       decimal.NewFromFloat(p.Price),
			UnitDiscount:    decimal.Zero,
			LineTotal:       decimal.NewFromFloat(p.TotalPrice),
			MatchType:       m.Type,
			MatchConfidence: m.Confidence,
		}
		if m.Product != nil {
			productID := m.Product.ID
			item.ProductID = &productID
		}
		items = append(items, item)
	}

	if err := o.repo.ReplaceLineItems(ctx, receipt.ID, items); err != nil {
		return nil, fmt.Errorf("db: replace line items: %w", err)
	}

	if err := o.setStep(ctx, receipt, enums.StepMatchingCompleted); err != nil {
		return nil, err
	}
	return items, nil
}

// finalize posts inventory for every matched or created line and parks the
// receipt for review. Only an explicit confirm completes a receipt.
func (o *Orchestrator) finalize(ctx context.Context, receipt *models.Receipt, parsed *parser.Receipt, items []models.ReceiptLineItem) error {
	total := decimal.NewFromFloat(parsed.Total)
	if total.IsZero() {
		for _, item := range items {
			total = total.Add(item.LineTotal)
		}
	}

	if err := o.setStep(ctx, receipt, enums.StepFinalizingInventory); err != nil {
		return err
	}
	start := time.Now()

	receiptID := receipt.ID
	var invErr error
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		_, err := o.inventory.Add(ctx, inventory.AddInput{
			ProductID: *item.ProductID,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			Source:    "receipt",
			SourceID:  &receiptID,
		})
		if err != nil {
			// Stock posting is best effort; the review flow can correct it.
			invErr = err
			if o.logg != nil {
				o.logg.Warn(ctx, fmt.Sprintf("posting inventory for %q failed: %v", item.RawName, err))
			}
		}
	}
	o.observeStage("inventory", start, invErr)

	if err := o.update(ctx, receipt.ID, map[string]any{
		"status":       enums.ReceiptStatusReviewPending,
		"current_step": enums.StepReviewPending,
		"total":        total,
		"last_error":   nil,
	}); err != nil {
		return err
	}
	receipt.Status = enums.ReceiptStatusReviewPending
	receipt.CurrentStep = enums.StepReviewPending
	o.notifyProgress(ctx, receipt, nil, nil)

	if o.logg != nil {
		o.logg.Info(ctx, "receipt processed, awaiting review")
	}
	return nil
}

// fail classifies the stage error, persists it on the receipt and hands the
// suggested recovery actions to the dispatch table.
func (o *Orchestrator) fail(ctx context.Context, receipt *models.Receipt, attempt int, stageErr error) error {
	classified := Classify(stageErr)
	errText := stageErr.Error()

	if o.logg != nil {
		o.logg.Error(ctx, fmt.Sprintf("pipeline attempt %d failed (%s/%s)",
			attempt+1, classified.Category, classified.Severity), stageErr)
	}

	fields := map[string]any{
		"last_error":     errText,
		"error_category": classified.Category,
		"error_severity": classified.Severity,
	}

	canRetry := classified.Recoverable && attempt+1 < o.cfg.MaxAttempts
	retrying := canRetry && wantsRetry(classified.Recovery)
	if !retrying {
		if classified.WantsManualReview() {
			fields["status"] = enums.ReceiptStatusManualReview
			fields["current_step"] = enums.StepAwaitingManualReview
			receipt.Status = enums.ReceiptStatusManualReview
			receipt.CurrentStep = enums.StepAwaitingManualReview
		} else {
			fields["status"] = enums.ReceiptStatusError
			fields["current_step"] = enums.StepFailed
			receipt.Status = enums.ReceiptStatusError
			receipt.CurrentStep = enums.StepFailed
		}
	}

	if err := o.update(ctx, receipt.ID, fields); err != nil {
		return err
	}
	receipt.LastError = &errText

	o.executeRecovery(ctx, &recoveryState{
		receipt:    receipt,
		classified: classified,
		attempt:    attempt,
		errText:    errText,
		canRetry:   canRetry,
	})

	o.notifyProgress(ctx, receipt, &errText, &classified.UserMessage)
	return stageErr
}

func (o *Orchestrator) setStep(ctx context.Context, receipt *models.Receipt, step enums.ProcessingStep) error {
	if err := o.update(ctx, receipt.ID, map[string]any{"current_step": step}); err != nil {
		return err
	}
	receipt.CurrentStep = step
	o.notifyProgress(ctx, receipt, nil, nil)
	return nil
}

func (o *Orchestrator) update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if err := o.repo.UpdateFields(ctx, id, fields); err != nil {
		return fmt.Errorf("db: update receipt: %w", err)
	}
	return nil
}

func (o *Orchestrator) notifyProgress(ctx context.Context, receipt *models.Receipt, errText, userMessage *string) {
	event := ProgressEvent{
		ReceiptID: receipt.ID,
		Status:    receipt.Status,
		Step:      receipt.CurrentStep,
		Progress:  receipt.CurrentStep.Progress(),
		Error:     errText,
	}
	if userMessage != nil && *userMessage != "" {
		event.UserMessage = userMessage
	}
	if err := o.notifier.PublishProgress(ctx, event); err != nil && o.logg != nil {
		o.logg.Warn(ctx, fmt.Sprintf("failed to publish progress event: %v", err))
	}
}

func (o *Orchestrator) observeStage(stage string, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveStageDuration(stage, time.Since(start))
	if err != nil {
		o.metrics.IncStageFailure(stage)
		return
	}
	o.metrics.IncStageSuccess(stage)
}

func parsePurchaseDate(value string) *time.Time {
	if value == "" || value == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}
