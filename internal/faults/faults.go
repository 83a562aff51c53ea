package faults

import (
	"errors"
	"fmt"
)

// Sentinel markers. Every error surfaced by a pipeline stage carries exactly
// one of these.
var (
	// ErrProviderDegraded marks a research provider failure the item can
	// survive; the stage records a warning and continues.
	ErrProviderDegraded = errors.New("research provider degraded")

	// ErrGenerationTruncated marks model output cut off at the token
	// ceiling. One retry with a raised ceiling is allowed.
	ErrGenerationTruncated = errors.New("generation output truncated")

	// ErrGenerationMalformed marks model output that never parsed into the
	// expected structure after the format retry budget.
	ErrGenerationMalformed = errors.New("generation output malformed")

	// ErrValidationCorrectable marks a constraint violation a targeted
	// regeneration can fix.
	ErrValidationCorrectable = errors.New("validation failed, correctable")

	// ErrValidationStructural marks a constraint violation regeneration
	// cannot fix; the item needs human attention.
	ErrValidationStructural = errors.New("validation failed, structural")

	// ErrExternalService marks any other upstream failure: persistence,
	// publishing, notification transport.
	ErrExternalService = errors.New("external service failure")
)

// Wrap tags err with a sentinel marker and the stage/operation context where
// the failure happened. A nil marker defaults to ErrExternalService.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrExternalService
	}
	detail := message
	if operation != "" {
		detail = operation + ": " + detail
	}
	if stage != "" {
		detail = stage + ": " + detail
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// Fatal reports whether err should push the item to the error status.
// Degraded providers are the only survivable class.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrProviderDegraded)
}

// Retryable reports whether the pipeline may retry the failing step within
// its bounded budgets.
func Retryable(err error) bool {
	return errors.Is(err, ErrGenerationTruncated) || errors.Is(err, ErrValidationCorrectable)
}

// Class returns a stable label for logs and error rows.
func Class(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrProviderDegraded):
		return "provider_degraded"
	case errors.Is(err, ErrGenerationTruncated):
		return "generation_truncated"
	case errors.Is(err, ErrGenerationMalformed):
		return "generation_malformed"
	case errors.Is(err, ErrValidationCorrectable):
		return "validation_correctable"
	case errors.Is(err, ErrValidationStructural):
		return "validation_structural"
	default:
		return "external_service"
	}
}

// Truncate caps a message at limit runes, appending an ellipsis when content
// was dropped. Non-positive limits leave the message untouched.
func Truncate(message string, limit int) string {
	if limit <= 0 {
		return message
	}
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return string(runes[:limit]) + "..."
}
