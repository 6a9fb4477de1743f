package ocr

import (
	"context"

	"github.com/pkruczek/spizarka-backend/pkg/vision"
)

// textDetector is the surface needed from the Cloud Vision client.
type textDetector interface {
	DetectText(ctx context.Context, path string) (vision.Text, error)
}

// VisionBackend is the paid Cloud Vision OCR backend.
type VisionBackend struct {
	client textDetector
}

// NewVisionBackend wraps a configured Cloud Vision client.
func NewVisionBackend(client textDetector) *VisionBackend {
	return &VisionBackend{client: client}
}

func (b *VisionBackend) Name() string { return "cloud_vision" }

func (b *VisionBackend) Paid() bool { return true }

func (b *VisionBackend) Available(_ context.Context) bool {
	return b.client != nil
}

func (b *VisionBackend) ExtractText(ctx context.Context, imagePath string) (Result, error) {
	text, err := b.client.DetectText(ctx, imagePath)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:       text.Content,
		Confidence: text.Confidence,
		Backend:    b.Name(),
	}, nil
}
