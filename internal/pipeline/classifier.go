package pipeline

import (
	"strings"

	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

// RecoveryAction names a suggested follow-up for a classified failure.
type RecoveryAction string

const (
	RecoveryRetry           RecoveryAction = "retry"
	RecoveryDifferentOCR    RecoveryAction = "retry_with_different_ocr"
	RecoveryPreprocessImage RecoveryAction = "preprocess_image"
	RecoveryManualReview    RecoveryAction = "manual_review"
	RecoveryAlertAdmin      RecoveryAction = "alert_admin"
)

// ClassifiedError is a pipeline failure mapped to a category, a severity and
// a message safe to show the user.
type ClassifiedError struct {
	Category    enums.ErrorCategory
	Severity    enums.ErrorSeverity
	Recoverable bool
	UserMessage string
	Recovery    []RecoveryAction
}

type errorPattern struct {
	substring   string
	category    enums.ErrorCategory
	severity    enums.ErrorSeverity
	recoverable bool
	userMessage string
	recovery    []RecoveryAction
}

// Patterns are checked in order; first hit wins. Substrings are matched
// against the lowercased error text.
var errorPatterns = []errorPattern{
	{
		substring:   "ocr returned empty text",
		category:    enums.ErrorCategoryOCR,
		severity:    enums.ErrorSeverityHigh,
		recoverable: true,
		userMessage: "Nie udało się odczytać tekstu z paragonu. Spróbuj zrobić wyraźniejsze zdjęcie.",
		recovery:    []RecoveryAction{RecoveryDifferentOCR, RecoveryPreprocessImage, RecoveryManualReview},
	},
	{
		substring:   "no ocr backends available",
		category:    enums.ErrorCategoryOCR,
		severity:    enums.ErrorSeverityCritical,
		recoverable: false,
		userMessage: "Przetwarzanie paragonów jest chwilowo niedostępne. Spróbuj później.",
		recovery:    []RecoveryAction{RecoveryAlertAdmin},
	},
	{
		substring:   "no products found in receipt text",
		category:    enums.ErrorCategoryParsing,
		severity:    enums.ErrorSeverityMedium,
		recoverable: true,
		userMessage: "Nie znaleziono produktów na paragonie. Sprawdź, czy zdjęcie obejmuje cały paragon.",
		recovery:    []RecoveryAction{RecoveryRetry, RecoveryManualReview},
	},
	{
		substring:   "llm service timeout",
		category:    enums.ErrorCategoryParsing,
		severity:    enums.ErrorSeverityHigh,
		recoverable: true,
		userMessage: "Analiza paragonu trwa dłużej niż zwykle. Spróbujemy ponownie automatycznie.",
		recovery:    []RecoveryAction{RecoveryRetry},
	},
	{
		substring:   "file not found",
		category:    enums.ErrorCategoryFile,
		severity:    enums.ErrorSeverityHigh,
		recoverable: false,
		userMessage: "Plik paragonu nie istnieje. Prześlij zdjęcie ponownie.",
		recovery:    []RecoveryAction{RecoveryManualReview},
	},
	{
		substring:   "no such file",
		category:    enums.ErrorCategoryFile,
		severity:    enums.ErrorSeverityHigh,
		recoverable: false,
		userMessage: "Plik paragonu nie istnieje. Prześlij zdjęcie ponownie.",
		recovery:    []RecoveryAction{RecoveryManualReview},
	},
	{
		substring:   "unsupported file format",
		category:    enums.ErrorCategoryFile,
		severity:    enums.ErrorSeverityMedium,
		recoverable: false,
		userMessage: "Nieobsługiwany format pliku. Prześlij zdjęcie w formacie JPG lub PNG.",
		recovery:    []RecoveryAction{RecoveryManualReview},
	},
	{
		substring:   "out of memory",
		category:    enums.ErrorCategoryMemory,
		severity:    enums.ErrorSeverityHigh,
		recoverable: true,
		userMessage: "Wystąpił chwilowy problem z przetwarzaniem. Spróbujemy ponownie.",
		recovery:    []RecoveryAction{RecoveryRetry, RecoveryAlertAdmin},
	},
	{
		substring:   "connection timeout",
		category:    enums.ErrorCategoryNetwork,
		severity:    enums.ErrorSeverityMedium,
		recoverable: true,
		userMessage: "Problem z połączeniem. Spróbujemy ponownie automatycznie.",
		recovery:    []RecoveryAction{RecoveryRetry},
	},
}

// Classify maps an error onto a category and recovery plan. Specific
// patterns go first, then generic timeout/network heuristics, then a safe
// unknown default.
func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{
			Category:    enums.ErrorCategoryUnknown,
			Severity:    enums.ErrorSeverityLow,
			Recoverable: true,
		}
	}

	msg := strings.ToLower(err.Error())

	for _, p := range errorPatterns {
		if strings.Contains(msg, p.substring) {
			return ClassifiedError{
				Category:    p.category,
				Severity:    p.severity,
				Recoverable: p.recoverable,
				UserMessage: p.userMessage,
				Recovery:    p.recovery,
			}
		}
	}

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return ClassifiedError{
			Category:    enums.ErrorCategoryTimeout,
			Severity:    enums.ErrorSeverityMedium,
			Recoverable: true,
			UserMessage: "Przetwarzanie trwa dłużej niż zwykle. Spróbujemy ponownie.",
			Recovery:    []RecoveryAction{RecoveryRetry},
		}
	}
	if strings.Contains(msg, "connection") || strings.Contains(msg, "network") {
		return ClassifiedError{
			Category:    enums.ErrorCategoryNetwork,
			Severity:    enums.ErrorSeverityMedium,
			Recoverable: true,
			UserMessage: "Problem z połączeniem. Spróbujemy ponownie automatycznie.",
			Recovery:    []RecoveryAction{RecoveryRetry},
		}
	}

	return ClassifiedError{
		Category:    enums.ErrorCategoryUnknown,
		Severity:    enums.ErrorSeverityMedium,
		Recoverable: true,
		UserMessage: "Wystąpił nieoczekiwany błąd podczas przetwarzania paragonu.",
		Recovery:    []RecoveryAction{RecoveryRetry, RecoveryManualReview},
	}
}

// IsCritical reports whether the failure should page an operator.
func (c ClassifiedError) IsCritical() bool {
	return c.Severity == enums.ErrorSeverityCritical
}

// WantsManualReview reports whether manual review is among the suggestions.
func (c ClassifiedError) WantsManualReview() bool {
	for _, a := range c.Recovery {
		if a == RecoveryManualReview {
			return true
		}
	}
	return false
}
