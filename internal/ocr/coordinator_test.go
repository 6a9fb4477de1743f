package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pkruczek/spizarka-backend/pkg/config"
)

type fakeBackend struct {
	name      string
	paid      bool
	available bool
	result    Result
	err       error
	calls     int
}

func (f *fakeBackend) Name() string                     { return f.name }
func (f *fakeBackend) Paid() bool                       { return f.paid }
func (f *fakeBackend) Available(_ context.Context) bool { return f.available }
func (f *fakeBackend) ExtractText(_ context.Context, _ string) (Result, error) {
	f.calls++
	return f.result, f.err
}

func testOCRConfig() config.OCRConfig {
	return config.OCRConfig{
		ConfidenceThreshold: 0.7,
		LocalTimeout:        time.Second,
		PaidTimeout:         time.Second,
		PaidAttemptBudget:   1,
	}
}

func TestHighConfidenceLocalStopsEarly(t *testing.T) {
	local := &fakeBackend{name: "tesseract", available: true, result: Result{Text: "PARAGON", Confidence: 0.92}}
	paid := &fakeBackend{name: "cloud_vision", paid: true, available: true, result: Result{Text: "PARAGON", Confidence: 0.99}}

	c, err := NewCoordinator([]Backend{local, paid}, testOCRConfig(), nil, nil)
	require.NoError(t, err)

	ext, err := c.ExtractText(context.Background(), "r.jpg", 1)
	require.NoError(t, err)
	require.Equal(t, "tesseract", ext.Backend)
	require.Zero(t, ext.PaidAttempts)
	require.Zero(t, paid.calls)
}

func TestLowConfidenceEscalatesToPaid(t *testing.T) {
	local := &fakeBackend{name: "tesseract", available: true, result: Result{Text: "P4RAG0N", Confidence: 0.4}}
	paid := &fakeBackend{name: "cloud_vision", paid: true, available: true, result: Result{Text: "PARAGON", Confidence: 0.95}}

	c, err := NewCoordinator([]Backend{local, paid}, testOCRConfig(), nil, nil)
	require.NoError(t, err)

	ext, err := c.ExtractText(context.Background(), "r.jpg", 1)
	require.NoError(t, err)
	require.Equal(t, "cloud_vision", ext.Backend)
	require.Equal(t, 1, ext.PaidAttempts)
}

func TestExhaustedBudgetSkipsPaid(t *testing.T) {
	local := &fakeBackend{name: "tesseract", available: true, result: Result{Text: "P4RAG0N", Confidence: 0.4}}
	paid := &fakeBackend{name: "cloud_vision", paid: true, available: true, result: Result{Text: "PARAGON", Confidence: 0.95}}

	c, err := NewCoordinator([]Backend{local, paid}, testOCRConfig(), nil, nil)
	require.NoError(t, err)

	ext, err := c.ExtractText(context.Background(), "r.jpg", 0)
	require.NoError(t, err)
	require.Equal(t, "tesseract", ext.Backend)
	require.InDelta(t, 0.4, ext.Confidence, 1e-9)
	require.Zero(t, paid.calls)
}

func TestPaidFailureStillSpendsBudget(t *testing.T) {
	local := &fakeBackend{name: "tesseract", available: true, result: Result{Text: "P4RAG0N", Confidence: 0.4}}
	paid := &fakeBackend{name: "cloud_vision", paid: true, available: true, err: errors.New("quota exceeded")}

	c, err := NewCoordinator([]Backend{local, paid}, testOCRConfig(), nil, nil)
	require.NoError(t, err)

	ext, err := c.ExtractText(context.Background(), "r.jpg", 1)
	require.NoError(t, err)
	require.Equal(t, "tesseract", ext.Backend)
	require.Equal(t, 1, ext.PaidAttempts)
}

func TestNoBackendsAvailable(t *testing.T) {
	local := &fakeBackend{name: "tesseract", available: false}
	paid := &fakeBackend{name: "cloud_vision", paid: true, available: false}

	c, err := NewCoordinator([]Backend{local, paid}, testOCRConfig(), nil, nil)
	require.NoError(t, err)

	_, err = c.ExtractText(context.Background(), "r.jpg", 1)
	require.ErrorIs(t, err, ErrNoBackends)
}

func TestAllEmptyTextFails(t *testing.T) {
	local := &fakeBackend{name: "tesseract", available: true, result: Result{Text: "", Confidence: 0}}
	paid := &fakeBackend{name: "cloud_vision", paid: true, available: true, result: Result{Text: "  ", Confidence: 0.2}}

	c, err := NewCoordinator([]Backend{local, paid}, testOCRConfig(), nil, nil)
	require.NoError(t, err)

	ext, err := c.ExtractText(context.Background(), "r.jpg", 1)
	require.ErrorIs(t, err, ErrEmptyText)
	require.Equal(t, 1, ext.PaidAttempts)
}

func TestBestOfMultipleLowConfidenceResults(t *testing.T) {
	weak := &fakeBackend{name: "tesseract", available: true, result: Result{Text: "P4RAG0N", Confidence: 0.3}}
	better := &fakeBackend{name: "tesseract_alt", available: true, result: Result{Text: "PARAGON", Confidence: 0.6}}

	c, err := NewCoordinator([]Backend{weak, better}, testOCRConfig(), nil, nil)
	require.NoError(t, err)

	ext, err := c.ExtractText(context.Background(), "r.jpg", 0)
	require.NoError(t, err)
	require.Equal(t, "tesseract_alt", ext.Backend)
	require.InDelta(t, 0.6, ext.Confidence, 1e-9)
}
