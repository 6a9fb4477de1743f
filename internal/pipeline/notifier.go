package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/pkruczek/spizarka-backend/pkg/enums"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
	"github.com/pkruczek/spizarka-backend/pkg/pubsub"
)

const defaultPublishTimeout = 10 * time.Second

// ProgressEvent tells client apps where a receipt is in the pipeline.
type ProgressEvent struct {
	ReceiptID   uuid.UUID            `json:"receipt_id"`
	Status      enums.ReceiptStatus  `json:"status"`
	Step        enums.ProcessingStep `json:"step"`
	Progress    int                  `json:"progress"`
	Error       *string              `json:"error,omitempty"`
	UserMessage *string              `json:"user_message,omitempty"`
	OccurredAt  time.Time            `json:"occurred_at"`
}

// AdminAlert flags a failure that needs operator attention.
type AdminAlert struct {
	ReceiptID  uuid.UUID           `json:"receipt_id"`
	Category   enums.ErrorCategory `json:"category"`
	Severity   enums.ErrorSeverity `json:"severity"`
	Message    string              `json:"message"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// Notifier publishes pipeline events to the outside world.
type Notifier interface {
	PublishProgress(ctx context.Context, event ProgressEvent) error
	PublishAdminAlert(ctx context.Context, alert AdminAlert) error
}

// publisher and publishResult wrap the Pub/Sub surface so tests can fake it.
type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.pub.Publish(ctx, msg)
}

type pubsubNotifier struct {
	progress publisher
	admin    publisher
	logg     *logger.Logger
}

// NewNotifier builds a Pub/Sub backed notifier. A nil client yields a no-op
// notifier so the pipeline can run without messaging configured.
func NewNotifier(client *pubsub.Client, logg *logger.Logger) Notifier {
	if client == nil {
		return noopNotifier{}
	}
	progress := client.ProgressPublisher()
	admin := client.AdminPublisher()
	if progress == nil && admin == nil {
		return noopNotifier{}
	}

	n := &pubsubNotifier{logg: logg}
	if progress != nil {
		n.progress = gcpPublisher{pub: progress}
	}
	if admin != nil {
		n.admin = gcpPublisher{pub: admin}
	}
	return n
}

func (n *pubsubNotifier) PublishProgress(ctx context.Context, event ProgressEvent) error {
	if n.progress == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return n.publish(ctx, n.progress, event, map[string]string{
		"receipt_id": event.ReceiptID.String(),
		"event_type": "receipt_progress",
	})
}

func (n *pubsubNotifier) PublishAdminAlert(ctx context.Context, alert AdminAlert) error {
	if n.admin == nil {
		return nil
	}
	if alert.OccurredAt.IsZero() {
		alert.OccurredAt = time.Now().UTC()
	}
	return n.publish(ctx, n.admin, alert, map[string]string{
		"receipt_id": alert.ReceiptID.String(),
		"event_type": "admin_alert",
		"severity":   string(alert.Severity),
	})
}

func (n *pubsubNotifier) publish(ctx context.Context, pub publisher, payload any, attrs map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

type noopNotifier struct{}

func (noopNotifier) PublishProgress(context.Context, ProgressEvent) error { return nil }
func (noopNotifier) PublishAdminAlert(context.Context, AdminAlert) error  { return nil }
