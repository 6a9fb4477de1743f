package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/pkruczek/spizarka-backend/pkg/config"
)

// ErrNotConfigured marks a client built without an API key.
var ErrNotConfigured = errors.New("vision api key not configured")

// Client wraps the Cloud Vision text detection API.
type Client struct {
	svc       *vision.Service
	languages []string
}

// Text is the result of a detection call.
type Text struct {
	Content    string
	Confidence float64
}

// NewClient builds a Cloud Vision client. Returns ErrNotConfigured when no
// API key is set so callers can skip registering the paid backend.
func NewClient(ctx context.Context, cfg config.VisionConfig, languages []string) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	svc, err := vision.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating vision service: %w", err)
	}
	return &Client{svc: svc, languages: languages}, nil
}

// DetectText runs TEXT_DETECTION on the image at path.
func (c *Client) DetectText(ctx context.Context, path string) (Text, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Text{}, fmt.Errorf("reading image: %w", err)
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
			Features: []*vision.Feature{{
				Type: "TEXT_DETECTION",
			}},
			ImageContext: &vision.ImageContext{
				LanguageHints: c.languages,
			},
		}},
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return Text{}, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return Text{}, errors.New("vision returned no responses")
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return Text{}, fmt.Errorf("vision error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil || strings.TrimSpace(r.FullTextAnnotation.Text) == "" {
		return Text{}, nil
	}

	return Text{
		Content:    r.FullTextAnnotation.Text,
		Confidence: annotationConfidence(r.FullTextAnnotation),
	}, nil
}

// annotationConfidence averages block-level confidences. The API omits them
// for some images; assume a strong paid-backend default in that case.
func annotationConfidence(a *vision.TextAnnotation) float64 {
	var sum float64
	var n int
	for _, page := range a.Pages {
		for _, block := range page.Blocks {
			if block.Confidence > 0 {
				sum += block.Confidence
				n++
			}
		}
	}
	if n == 0 {
		return 0.9
	}
	return sum / float64(n)
}
