package ocr

import "context"

// Result is the outcome of a single OCR extraction.
type Result struct {
	Text       string
	Confidence float64
	Backend    string
}

// Backend is one OCR engine. Local backends are free and tried first; paid
// backends spend the receipt's paid attempt budget.
type Backend interface {
	Name() string
	Paid() bool
	Available(ctx context.Context) bool
	ExtractText(ctx context.Context, imagePath string) (Result, error)
}
