package treepath

import (
	"context"
	"errors"
	"strings"

	"github.com/dan-solli/treepath/pkg/hierarchy"
)

// Error type constants for classification
const (
	ErrTypeTimeout     = "timeout"
	ErrTypeDatabase    = "database"
	ErrTypeValidation  = "validation"
	ErrTypeUnsupported = "unsupported"
	ErrTypeUnknown     = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// This enables grouping errors by category in metrics and traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTypeTimeout
	}
	if errors.Is(err, hierarchy.ErrUnsupportedQuery) {
		return ErrTypeUnsupported
	}
	if errors.Is(err, hierarchy.ErrTypeNotRegistered) {
		return ErrTypeValidation
	}

	errStrLower := strings.ToLower(err.Error())

	if strings.Contains(errStrLower, "timeout") || strings.Contains(errStrLower, "deadline exceeded") {
		return ErrTypeTimeout
	}

	// Database errors (SQLite specific)
	if strings.Contains(errStrLower, "sql") ||
		strings.Contains(errStrLower, "database") ||
		strings.Contains(errStrLower, "constraint") ||
		strings.Contains(errStrLower, "locked") {
		return ErrTypeDatabase
	}

	if strings.Contains(errStrLower, "validation") ||
		strings.Contains(errStrLower, "invalid") ||
		strings.Contains(errStrLower, "required") ||
		strings.Contains(errStrLower, "not bound") ||
		strings.Contains(errStrLower, "not registered") {
		return ErrTypeValidation
	}

	return ErrTypeUnknown
}
