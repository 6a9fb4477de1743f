package enums

import "fmt"

// ProcessingStep names a stage of the receipt pipeline. Each step maps to a
// progress percentage published to clients while a receipt is being processed.
type ProcessingStep string

const (
	StepUploaded             ProcessingStep = "uploaded"
	StepOCRInProgress        ProcessingStep = "ocr_in_progress"
	StepOCRCompleted         ProcessingStep = "ocr_completed"
	StepParsingInProgress    ProcessingStep = "parsing_in_progress"
	StepParsingCompleted     ProcessingStep = "parsing_completed"
	StepMatchingInProgress   ProcessingStep = "matching_in_progress"
	StepMatchingCompleted    ProcessingStep = "matching_completed"
	StepFinalizingInventory  ProcessingStep = "finalizing_inventory"
	StepReviewPending        ProcessingStep = "review_pending"
	StepDone                 ProcessingStep = "done"
	StepFailed               ProcessingStep = "failed"
	StepAwaitingManualReview ProcessingStep = "awaiting_manual_review"
)

var validProcessingSteps = []ProcessingStep{
	StepUploaded,
	StepOCRInProgress,
	StepOCRCompleted,
	StepParsingInProgress,
	StepParsingCompleted,
	StepMatchingInProgress,
	StepMatchingCompleted,
	StepFinalizingInventory,
	StepReviewPending,
	StepDone,
	StepFailed,
	StepAwaitingManualReview,
}

// stepProgress keeps non-terminal steps strictly increasing so clients can
// render a monotonic progress bar. failed is terminal and reports zero.
var stepProgress = map[ProcessingStep]int{
	StepUploaded:             10,
	StepOCRInProgress:        25,
	StepOCRCompleted:         40,
	StepParsingInProgress:    55,
	StepParsingCompleted:     70,
	StepMatchingInProgress:   80,
	StepMatchingCompleted:    90,
	StepFinalizingInventory:  95,
	StepReviewPending:        98,
	StepDone:                 100,
	StepFailed:               0,
	StepAwaitingManualReview: 0,
}

// IsValid reports whether the value matches the canonical processing step enum.
func (p ProcessingStep) IsValid() bool {
	for _, candidate := range validProcessingSteps {
		if candidate == p {
			return true
		}
	}
	return false
}

// Progress returns the percentage published for this step.
func (p ProcessingStep) Progress() int {
	return stepProgress[p]
}

// ParseProcessingStep converts the raw string to ProcessingStep.
func ParseProcessingStep(value string) (ProcessingStep, error) {
	for _, candidate := range validProcessingSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid processing step %q", value)
}
