package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pkruczek/spizarka-backend/internal/catalog"
	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/internal/matcher"
	"github.com/pkruczek/spizarka-backend/internal/ocr"
	"github.com/pkruczek/spizarka-backend/internal/parser"
	"github.com/pkruczek/spizarka-backend/internal/receipts"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

const sampleReceiptText = `BIEDRONKA
Codziennie niskie ceny

Mleko 2 x 3,50
Chleb 1 x 4,20

SUMA 11,20 PLN`

type fakeExtractor struct {
	extraction ocr.Extraction
	err        error
	calls      int
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ string, _ int) (ocr.Extraction, error) {
	f.calls++
	return f.extraction, f.err
}

type fakeDelayedQueue struct {
	ids      []uuid.UUID
	attempts []int
	delays   []time.Duration
}

func (f *fakeDelayedQueue) EnqueueDelayed(_ context.Context, id uuid.UUID, attempt int, delay time.Duration) error {
	f.ids = append(f.ids, id)
	f.attempts = append(f.attempts, attempt)
	f.delays = append(f.delays, delay)
	return nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("llm down")
}

type recordingNotifier struct {
	progress []ProgressEvent
	alerts   []AdminAlert
}

func (r *recordingNotifier) PublishProgress(_ context.Context, e ProgressEvent) error {
	r.progress = append(r.progress, e)
	return nil
}

func (r *recordingNotifier) PublishAdminAlert(_ context.Context, a AdminAlert) error {
	r.alerts = append(r.alerts, a)
	return nil
}

type fixture struct {
	client    *db.Client
	repo      *receipts.Repository
	extractor *fakeExtractor
	queue     *fakeDelayedQueue
	notifier  *recordingNotifier
	inv       inventory.Service
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: "sqlite",
		DSN:    "file::memory:",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.DB().AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.ProductAlias{},
		&models.Receipt{},
		&models.ReceiptLineItem{},
		&models.InventoryItem{},
		&models.InventoryHistory{},
	))

	inv, err := inventory.NewService(inventory.NewRepository(client.DB()), client, decimal.NewFromInt(5))
	require.NoError(t, err)

	parserSvc, err := parser.NewService(failingGenerator{}, nil)
	require.NoError(t, err)

	matcherSvc, err := matcher.NewService(catalog.NewRepository(client.DB()), client, config.MatcherConfig{
		FuzzyThreshold:     0.75,
		AutoCreateProducts: true,
	}, nil)
	require.NoError(t, err)

	f := &fixture{
		client:    client,
		repo:      receipts.NewRepository(client.DB()),
		extractor: &fakeExtractor{},
		queue:     &fakeDelayedQueue{},
		notifier:  &recordingNotifier{},
		inv:       inv,
	}

	orch, err := NewOrchestrator(
		f.repo,
		f.extractor,
		parserSvc,
		matcherSvc,
		inv,
		f.queue,
		f.notifier,
		nil,
		nil,
		config.PipelineConfig{MaxAttempts: 3, BackoffBase: time.Minute},
		1,
		WithPreprocessor(func(path string) (string, error) { return path, nil }),
	)
	require.NoError(t, err)
	f.orch = orch
	return f
}

func (f *fixture) mustCreateReceipt(t *testing.T) *models.Receipt {
	t.Helper()
	receipt := &models.Receipt{
		ImagePath:   "uploads/receipt.jpg",
		Status:      enums.ReceiptStatusPending,
		CurrentStep: enums.StepUploaded,
		Currency:    enums.CurrencyPLN,
		Total:       decimal.Zero,
	}
	_, err := f.repo.Create(context.Background(), receipt)
	require.NoError(t, err)
	return receipt
}

func (f *fixture) mustCreateProduct(t *testing.T, normalized string) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:           normalized,
		NormalizedName: normalized,
		Unit:           "szt",
		IsActive:       true,
	}
	require.NoError(t, f.client.DB().Create(product).Error)
	return product
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Receipt {
	t.Helper()
	receipt, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	return receipt
}

func TestProcessUnknownProductsLandInReview(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	f.extractor.extraction = ocr.Extraction{
		Result: ocr.Result{Text: sampleReceiptText, Confidence: 0.9, Backend: "tesseract"},
	}

	require.NoError(t, f.orch.Process(context.Background(), receipt.ID, 0))

	got := f.reload(t, receipt.ID)
	require.Equal(t, enums.ReceiptStatusReviewPending, got.Status)
	require.Equal(t, enums.StepReviewPending, got.CurrentStep)
	require.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.RawText)
	require.NotEmpty(t, got.ExtractedData)
	require.True(t, got.Total.Equal(decimal.NewFromFloat(11.20)), "total %s", got.Total)

	require.Len(t, got.LineItems, 2)
	require.Equal(t, enums.MatchTypeCreated, got.LineItems[0].MatchType)
	require.True(t, got.LineItems[0].Quantity.Equal(decimal.NewFromInt(2)))
	require.True(t, got.LineItems[0].LineTotal.Equal(decimal.NewFromFloat(7.00)))
	require.True(t, got.LineItems[1].LineTotal.Equal(decimal.NewFromFloat(4.20)))

	// Ghost lines post stock too; the review flow corrects mistakes.
	items, err := f.inv.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	last := f.notifier.progress[len(f.notifier.progress)-1]
	require.Equal(t, enums.StepReviewPending, last.Step)
	require.Equal(t, 98, last.Progress)
}

func TestProcessPostsInventoryAndAwaitsReview(t *testing.T) {
	f := newFixture(t)
	mleko := f.mustCreateProduct(t, "mleko")
	chleb := f.mustCreateProduct(t, "chleb")
	receipt := f.mustCreateReceipt(t)
	f.extractor.extraction = ocr.Extraction{
		Result: ocr.Result{Text: sampleReceiptText, Confidence: 0.9, Backend: "tesseract"},
	}

	require.NoError(t, f.orch.Process(context.Background(), receipt.ID, 0))

	// Confident matches still wait for an explicit confirm.
	got := f.reload(t, receipt.ID)
	require.Equal(t, enums.ReceiptStatusReviewPending, got.Status)
	require.Equal(t, enums.StepReviewPending, got.CurrentStep)
	require.Len(t, got.LineItems, 2)
	require.Equal(t, enums.MatchTypeExact, got.LineItems[0].MatchType)
	require.InDelta(t, 1.0, got.LineItems[0].MatchConfidence, 1e-9)

	items, err := f.inv.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	byProduct := map[uuid.UUID]decimal.Decimal{}
	for _, item := range items {
		byProduct[item.ProductID] = item.Quantity
	}
	require.True(t, byProduct[mleko.ID].Equal(decimal.NewFromInt(2)))
	require.True(t, byProduct[chleb.ID].Equal(decimal.NewFromInt(1)))

	history, err := f.inv.History(context.Background(), mleko.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "receipt", history[0].Source)
	require.Equal(t, receipt.ID, *history[0].SourceID)
	require.True(t, history[0].NewQuantity.Equal(decimal.NewFromInt(2)))
}

func TestProcessNoProductsSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	f.extractor.extraction = ocr.Extraction{
		Result: ocr.Result{Text: "nieczytelny blady wydruk", Confidence: 0.2, Backend: "tesseract"},
	}

	err := f.orch.Process(context.Background(), receipt.ID, 0)
	require.ErrorIs(t, err, parser.ErrNoProducts)

	require.Equal(t, []int{1}, f.queue.attempts)

	got := f.reload(t, receipt.ID)
	require.Equal(t, enums.ReceiptStatusProcessing, got.Status)
	require.Equal(t, enums.ErrorCategoryParsing, *got.ErrorCategory)
}

func TestProcessSchedulesRetryWithBackoff(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	f.extractor.err = ocr.ErrEmptyText

	err := f.orch.Process(context.Background(), receipt.ID, 0)
	require.ErrorIs(t, err, ocr.ErrEmptyText)

	require.Equal(t, []int{1}, f.queue.attempts)
	require.Equal(t, []time.Duration{time.Minute}, f.queue.delays)

	got := f.reload(t, receipt.ID)
	require.Equal(t, enums.ReceiptStatusProcessing, got.Status)
	require.NotNil(t, got.LastError)
	require.Equal(t, enums.ErrorCategoryOCR, *got.ErrorCategory)
}

func TestProcessExhaustedAttemptsParkForManualReview(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	f.extractor.err = ocr.ErrEmptyText

	err := f.orch.Process(context.Background(), receipt.ID, 2)
	require.ErrorIs(t, err, ocr.ErrEmptyText)

	require.Empty(t, f.queue.attempts)

	got := f.reload(t, receipt.ID)
	require.Equal(t, enums.ReceiptStatusManualReview, got.Status)
	require.Equal(t, enums.StepAwaitingManualReview, got.CurrentStep)
	require.Equal(t, 3, got.Attempts)
}

func TestProcessCriticalFailureAlertsAdmin(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	f.extractor.err = ocr.ErrNoBackends

	err := f.orch.Process(context.Background(), receipt.ID, 0)
	require.ErrorIs(t, err, ocr.ErrNoBackends)

	require.Empty(t, f.queue.attempts)
	require.Len(t, f.notifier.alerts, 1)
	require.Equal(t, receipt.ID, f.notifier.alerts[0].ReceiptID)
	require.Equal(t, enums.ErrorSeverityCritical, f.notifier.alerts[0].Severity)

	got := f.reload(t, receipt.ID)
	require.Equal(t, enums.ReceiptStatusError, got.Status)
	require.Equal(t, enums.StepFailed, got.CurrentStep)
}

func TestProcessPersistsPaidAttemptsOnFailure(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	f.extractor.extraction = ocr.Extraction{PaidAttempts: 1}
	f.extractor.err = ocr.ErrEmptyText

	err := f.orch.Process(context.Background(), receipt.ID, 0)
	require.ErrorIs(t, err, ocr.ErrEmptyText)

	got := f.reload(t, receipt.ID)
	require.Equal(t, 1, got.PaidOCRAttempts)
}

func TestProcessResumesFromStoredText(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	require.NoError(t, f.repo.UpdateFields(context.Background(), receipt.ID, map[string]any{
		"raw_text": sampleReceiptText,
	}))
	f.extractor.err = errors.New("extractor must not run")

	require.NoError(t, f.orch.Process(context.Background(), receipt.ID, 1))

	require.Zero(t, f.extractor.calls)
	got := f.reload(t, receipt.ID)
	require.Equal(t, enums.ReceiptStatusReviewPending, got.Status)
}

func TestProcessSkipsSettledReceipts(t *testing.T) {
	f := newFixture(t)
	receipt := f.mustCreateReceipt(t)
	require.NoError(t, f.repo.UpdateFields(context.Background(), receipt.ID, map[string]any{
		"status": enums.ReceiptStatusCompleted,
	}))

	require.NoError(t, f.orch.Process(context.Background(), receipt.ID, 0))
	require.Zero(t, f.extractor.calls)
}

func TestProcessDropsMissingReceipts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.Process(context.Background(), uuid.New(), 0))
	require.Zero(t, f.extractor.calls)
}
