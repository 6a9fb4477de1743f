package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
	"github.com/pkruczek/spizarka-backend/pkg/metrics"
)

var (
	// ErrNoBackends means no OCR engine was available at all.
	ErrNoBackends = errors.New("no ocr backends available")
	// ErrEmptyText means every backend ran but none produced text.
	ErrEmptyText = errors.New("ocr returned empty text")
)

// Extraction is the coordinator's result: the best text found plus how many
// paid attempts were spent getting it.
type Extraction struct {
	Result
	PaidAttempts int
}

// Coordinator runs OCR backends under a confidence threshold and a paid
// attempt budget. Local backends go first in registration order; one paid
// backend may run when the budget allows and the locals fell short.
type Coordinator struct {
	locals  []Backend
	paids   []Backend
	cfg     config.OCRConfig
	metrics *metrics.PipelineMetrics
	logg    *logger.Logger
}

// NewCoordinator builds a coordinator over the given backends.
func NewCoordinator(backends []Backend, cfg config.OCRConfig, m *metrics.PipelineMetrics, logg *logger.Logger) (*Coordinator, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("at least one ocr backend required")
	}
	c := &Coordinator{cfg: cfg, metrics: m, logg: logg}
	for _, b := range backends {
		if b.Paid() {
			c.paids = append(c.paids, b)
		} else {
			c.locals = append(c.locals, b)
		}
	}
	return c, nil
}

// ExtractText tries backends until one clears the confidence threshold.
// paidBudget is how many paid attempts this receipt may still spend; the
// returned PaidAttempts counts attempts spent here, successful or not.
func (c *Coordinator) ExtractText(ctx context.Context, imagePath string, paidBudget int) (Extraction, error) {
	var attemptErrs error
	var results []Result
	ranAny := false

	for _, b := range c.locals {
		if !b.Available(ctx) {
			continue
		}
		ranAny = true

		res, err := c.runBackend(ctx, b, imagePath, c.cfg.LocalTimeout)
		if err != nil {
			attemptErrs = multierr.Append(attemptErrs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		if res.Text == "" {
			continue
		}
		results = append(results, res)
		if res.Confidence >= c.cfg.ConfidenceThreshold {
			return Extraction{Result: res}, nil
		}
	}

	paidAttempts := 0
	if paidBudget > 0 {
		for _, b := range c.paids {
			if !b.Available(ctx) {
				continue
			}
			ranAny = true

			// The budget is spent by trying, not by succeeding.
			paidAttempts = 1
			if c.metrics != nil {
				c.metrics.IncPaidOCRCall()
			}

			res, err := c.runBackend(ctx, b, imagePath, c.cfg.PaidTimeout)
			if err != nil {
				attemptErrs = multierr.Append(attemptErrs, fmt.Errorf("%s: %w", b.Name(), err))
			} else if res.Text != "" {
				results = append(results, res)
			}
			break
		}
	}

	if !ranAny {
		return Extraction{}, ErrNoBackends
	}

	best, ok := bestResult(results)
	if !ok {
		if attemptErrs != nil {
			return Extraction{PaidAttempts: paidAttempts}, fmt.Errorf("%w: %v", ErrEmptyText, attemptErrs)
		}
		return Extraction{PaidAttempts: paidAttempts}, ErrEmptyText
	}
	return Extraction{Result: best, PaidAttempts: paidAttempts}, nil
}

func (c *Coordinator) runBackend(ctx context.Context, b Backend, imagePath string, timeout time.Duration) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := b.ExtractText(ctx, imagePath)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if strings.TrimSpace(res.Text) == "" {
		outcome = "empty"
	}
	if c.metrics != nil {
		c.metrics.IncOCRAttempt(b.Name(), outcome)
	}
	if c.logg != nil {
		c.logg.Debug(ctx, fmt.Sprintf("ocr backend %s finished: %s", b.Name(), outcome))
	}
	if err != nil {
		return Result{}, err
	}
	res.Text = strings.TrimSpace(res.Text)
	res.Backend = b.Name()
	return res, nil
}

func bestResult(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Confidence > best.Confidence {
			best = r
		}
	}
	return best, true
}
