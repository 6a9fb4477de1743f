package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

// promoteInterval is how often the delayed set is scanned for due retries.
const promoteInterval = 5 * time.Second

// Processor runs one pipeline attempt for a receipt.
type Processor interface {
	Process(ctx context.Context, receiptID uuid.UUID, attempt int) error
}

// dequeuer is the queue surface the worker pool needs.
type dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)
	PromoteDue(ctx context.Context) (int, error)
}

// Worker runs a pool of goroutines draining the receipt queue plus one
// promoter moving due retries back onto it.
type Worker struct {
	queue     dequeuer
	processor Processor
	cfg       config.PipelineConfig
	logg      *logger.Logger
}

// NewWorker builds the worker pool.
func NewWorker(queue dequeuer, processor Processor, cfg config.PipelineConfig, logg *logger.Logger) (*Worker, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor required")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.QueuePollTimeout <= 0 {
		cfg.QueuePollTimeout = 5 * time.Second
	}
	return &Worker{queue: queue, processor: processor, cfg: cfg, logg: logg}, nil
}

// Run blocks until the context is cancelled, then drains cleanly.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.cfg.WorkerCount; i++ {
		g.Go(func() error {
			return w.consume(ctx)
		})
	}
	g.Go(func() error {
		return w.promote(ctx)
	})

	return g.Wait()
}

func (w *Worker) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		task, err := w.queue.Dequeue(ctx, w.cfg.QueuePollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if w.logg != nil {
				w.logg.Warn(ctx, fmt.Sprintf("dequeue failed: %v", err))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}

		// Process errors are already persisted and classified downstream;
		// the worker just moves on to the next task.
		if err := w.processor.Process(ctx, task.ReceiptID, task.Attempt); err != nil && w.logg != nil {
			w.logg.Warn(ctx, fmt.Sprintf("processing receipt %s failed: %v", task.ReceiptID, err))
		}
	}
}

func (w *Worker) promote(ctx context.Context) error {
	ticker := time.NewTicker(promoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.queue.PromoteDue(ctx); err != nil && w.logg != nil {
				w.logg.Warn(ctx, fmt.Sprintf("promoting delayed tasks failed: %v", err))
			}
		}
	}
}
