package enums

import "fmt"

// ReceiptStatus describes the allowed values for the `status` column in receipts.
type ReceiptStatus string

const (
	ReceiptStatusPending       ReceiptStatus = "pending"
	ReceiptStatusProcessing    ReceiptStatus = "processing"
	ReceiptStatusReviewPending ReceiptStatus = "review_pending"
	ReceiptStatusCompleted     ReceiptStatus = "completed"
	ReceiptStatusError         ReceiptStatus = "error"
	ReceiptStatusManualReview  ReceiptStatus = "manual_review"
)

var validReceiptStatuses = []ReceiptStatus{
	ReceiptStatusPending,
	ReceiptStatusProcessing,
	ReceiptStatusReviewPending,
	ReceiptStatusCompleted,
	ReceiptStatusError,
	ReceiptStatusManualReview,
}

// IsValid reports whether the value matches the canonical receipt status enum.
func (r ReceiptStatus) IsValid() bool {
	for _, candidate := range validReceiptStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further pipeline work.
func (r ReceiptStatus) IsTerminal() bool {
	return r == ReceiptStatusCompleted || r == ReceiptStatusManualReview
}

// ParseReceiptStatus converts the raw string to ReceiptStatus.
func ParseReceiptStatus(value string) (ReceiptStatus, error) {
	for _, candidate := range validReceiptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid receipt status %q", value)
}
