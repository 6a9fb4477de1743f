package pipeline

import (
	"context"
	"fmt"

	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// recoveryState carries what the recovery handlers need and what they have
// already done, so an action list schedules at most one retry and publishes
// at most one alert.
type recoveryState struct {
	receipt    *models.Receipt
	classified ClassifiedError
	attempt    int
	errText    string
	canRetry   bool
	scheduled  bool
	alerted    bool
}

// recoveryHandlers dispatches classified recovery actions. The retry-flavored
// actions share one handler: rescheduling re-runs the whole pipeline, which
// preprocesses the image and walks the OCR backends again.
var recoveryHandlers = map[RecoveryAction]func(*Orchestrator, context.Context, *recoveryState) error{
	RecoveryRetry:           (*Orchestrator).scheduleRetry,
	RecoveryDifferentOCR:    (*Orchestrator).scheduleRetry,
	RecoveryPreprocessImage: (*Orchestrator).scheduleRetry,
	RecoveryManualReview:    (*Orchestrator).queueManualReview,
	RecoveryAlertAdmin:      (*Orchestrator).alertAdmin,
}

// wantsRetry reports whether any suggested action reschedules the pipeline.
func wantsRetry(actions []RecoveryAction) bool {
	for _, a := range actions {
		switch a {
		case RecoveryRetry, RecoveryDifferentOCR, RecoveryPreprocessImage:
			return true
		}
	}
	return false
}

// executeRecovery runs every suggested action for a classified failure.
// Unknown actions and handler errors are logged and skipped; recovery never
// masks the stage error it reacts to.
func (o *Orchestrator) executeRecovery(ctx context.Context, st *recoveryState) {
	for _, action := range st.classified.Recovery {
		handler, ok := recoveryHandlers[action]
		if !ok {
			if o.logg != nil {
				o.logg.Warn(ctx, fmt.Sprintf("unknown recovery action %q", action))
			}
			continue
		}
		if err := handler(o, ctx, st); err != nil && o.logg != nil {
			o.logg.Warn(ctx, fmt.Sprintf("recovery action %q failed: %v", action, err))
		}
	}

	// Critical failures page an operator regardless of the action list.
	if st.classified.IsCritical() && !st.alerted {
		if err := o.alertAdmin(ctx, st); err != nil && o.logg != nil {
			o.logg.Warn(ctx, fmt.Sprintf("recovery action %q failed: %v", RecoveryAlertAdmin, err))
		}
	}
}

func (o *Orchestrator) scheduleRetry(ctx context.Context, st *recoveryState) error {
	if !st.canRetry || st.scheduled {
		return nil
	}
	st.scheduled = true

	delay := Backoff(o.cfg.BackoffBase, st.attempt)
	if o.metrics != nil {
		o.metrics.IncRetry()
	}
	if err := o.queue.EnqueueDelayed(ctx, st.receipt.ID, st.attempt+1, delay); err != nil {
		return fmt.Errorf("scheduling retry: %w", err)
	}
	return nil
}

// queueManualReview only logs; fail has already parked the receipt in the
// manual review state when no retry was left.
func (o *Orchestrator) queueManualReview(ctx context.Context, st *recoveryState) error {
	if st.receipt.Status != enums.ReceiptStatusManualReview {
		return nil
	}
	if o.logg != nil {
		o.logg.Info(ctx, "receipt parked for manual review")
	}
	return nil
}

func (o *Orchestrator) alertAdmin(ctx context.Context, st *recoveryState) error {
	if st.alerted {
		return nil
	}
	st.alerted = true

	return o.notifier.PublishAdminAlert(ctx, AdminAlert{
		ReceiptID: st.receipt.ID,
		Category:  st.classified.Category,
		Severity:  st.classified.Severity,
		Message:   st.errText,
	})
}
