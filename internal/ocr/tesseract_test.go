package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTesseractExtractTextHonorsCancel(t *testing.T) {
	b := NewTesseractBackend([]string{"pol"})
	release := make(chan struct{})
	b.recognizeFn = func(string) (Result, error) {
		<-release
		return Result{Text: "PARAGON"}, nil
	}
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.ExtractText(ctx, "r.jpg")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTesseractExtractTextReturnsResult(t *testing.T) {
	b := NewTesseractBackend([]string{"pol"})
	b.recognizeFn = func(string) (Result, error) {
		return Result{Text: "PARAGON", Confidence: 0.9, Backend: "tesseract"}, nil
	}

	res, err := b.ExtractText(context.Background(), "r.jpg")
	require.NoError(t, err)
	require.Equal(t, "PARAGON", res.Text)
	require.InDelta(t, 0.9, res.Confidence, 1e-9)
}
