package helpers

import (
	"context"
	"errors"
	"fmt"
	"level-observer/src/logger"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type LevelObserverError struct {
	Message string
	Cause   error
}

func (e *LevelObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LevelObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ LevelObserverError }
type NetworkError struct{ LevelObserverError }
type DataSourceError struct{ LevelObserverError }
type DatabaseError struct{ LevelObserverError }
type ValidationError struct{ LevelObserverError }

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{LevelObserverError{Message: msg, Cause: cause}}
}

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{LevelObserverError{Message: msg, Cause: cause}}
}

func NewDataSourceError(msg string, cause error) error {
	return &DataSourceError{LevelObserverError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{LevelObserverError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string, cause error) error {
	return &ValidationError{LevelObserverError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling baseDelay after
// each failure. It gives up early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, errors.Join(lastErr, ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

type ErrorHandler struct {
	Logger                 *logger.Logger
	ErrorCount             int
	MaxErrorsBeforeRestart int
	BaseDelay              time.Duration
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger:                 log.Named("ErrorHandler"),
		ErrorCount:             0,
		MaxErrorsBeforeRestart: 10,
		BaseDelay:              time.Second,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.ErrorCount = 0
}

// -----------------------------------------------------------------------------

// Unhealthy reports whether failures have piled up past the restart threshold.
func (e *ErrorHandler) Unhealthy() bool {
	return e.ErrorCount >= e.MaxErrorsBeforeRestart
}

// -----------------------------------------------------------------------------

// ExecuteWithRetry runs fn with retries and wraps the final failure in a
// typed error chosen from the operation name.
func (e *ErrorHandler) ExecuteWithRetry(operation string, fn func() error, maxRetries int) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			if e.ErrorCount > 0 {
				e.ErrorCount--
			}
			return nil
		}

		if attempt == maxRetries-1 {
			e.ErrorCount++
			e.Logger.Error("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)

			msg := fmt.Sprintf("%s failed", operation)
			lowerOp := strings.ToLower(operation)
			switch {
			case strings.Contains(lowerOp, "network") || strings.Contains(lowerOp, "fetch"):
				return NewNetworkError(msg, err)
			case strings.Contains(lowerOp, "database") || strings.Contains(lowerOp, "save"):
				return NewDatabaseError(msg, err)
			default:
				return &LevelObserverError{Message: msg, Cause: err}
			}
		}

		e.Logger.Warning("%s failed (attempt %d/%d): %v", operation, attempt+1, maxRetries, err)
		time.Sleep(e.BaseDelay * time.Duration(1<<attempt))
	}

	return &LevelObserverError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries)}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Handle(err error, context string) {
	if err != nil {
		e.ErrorCount++
		e.Logger.Error("Error in %s: %v", context, err)
	}
}
