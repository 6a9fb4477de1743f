package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractBackend runs local OCR through libtesseract.
type TesseractBackend struct {
	languages     []string
	clientFactory func() *gosseract.Client
	recognizeFn   func(string) (Result, error)
}

// NewTesseractBackend constructs the local Tesseract backend. Languages are
// tesseract codes (pol, eng).
func NewTesseractBackend(languages []string) *TesseractBackend {
	b := &TesseractBackend{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
	b.recognizeFn = b.recognize
	return b
}

func (b *TesseractBackend) Name() string { return "tesseract" }

func (b *TesseractBackend) Paid() bool { return false }

// Available reports whether the requested language packs are installed.
func (b *TesseractBackend) Available(_ context.Context) bool {
	c := b.clientFactory()
	defer c.Close()

	installed, err := c.GetAvailableLanguages()
	if err != nil {
		return false
	}
	have := make(map[string]struct{}, len(installed))
	for _, lang := range installed {
		have[lang] = struct{}{}
	}
	for _, lang := range b.languages {
		if _, ok := have[lang]; !ok {
			return false
		}
	}
	return true
}

// ExtractText runs recognition on the image at path. Confidence is the mean
// word confidence reported by tesseract, scaled to [0, 1]. Recognition runs
// in its own goroutine so a cancelled context returns immediately; libtesseract
// itself cannot be interrupted, so the goroutine finishes in the background.
func (b *TesseractBackend) ExtractText(ctx context.Context, imagePath string) (Result, error) {
	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := b.recognizeFn(imagePath)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out := <-done:
		return out.result, out.err
	}
}

func (b *TesseractBackend) recognize(imagePath string) (Result, error) {
	c := b.clientFactory()
	defer c.Close()

	if err := c.SetImage(imagePath); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(b.languages) > 0 {
		if err := c.SetLanguage(b.languages...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	return Result{
		Text:       strings.TrimSpace(text),
		Confidence: meanWordConfidence(c),
		Backend:    b.Name(),
	}, nil
}

func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, box := range boxes {
		sum += box.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
