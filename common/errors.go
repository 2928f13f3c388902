package common

import (
	"fmt"
	"time"
)

// ErrorType represents the category of an error
type ErrorType string

const (
	// ErrorTypeTransientSource represents a remote fetch failure that is
	// retryable within the range-source retry budget
	ErrorTypeTransientSource ErrorType = "transient_source"

	// ErrorTypeFatalSource represents a remote fetch failure after the retry
	// budget is exhausted; the run cannot continue without its data source
	ErrorTypeFatalSource ErrorType = "fatal_source"

	// ErrorTypeCacheIntegrity represents a persisted partition that cannot be
	// parsed; it must never be silently treated as empty
	ErrorTypeCacheIntegrity ErrorType = "cache_integrity"

	// ErrorTypeUnsupportedOrderType represents a settlement attempt against
	// an order type with no defined fill semantics
	ErrorTypeUnsupportedOrderType ErrorType = "unsupported_order_type"

	// ErrorTypeParsing represents JSON/CSV parsing or data format errors
	ErrorTypeParsing ErrorType = "parsing"

	// ErrorTypeValidation represents validation errors (invalid parameters, etc.)
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// EngineError is the base error type for cache-engine and simulator errors
type EngineError struct {
	Type      ErrorType
	Code      string
	Message   string
	Timestamp time.Time
	Retriable bool
	Cause     error
}

// Error returns the error message
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// IsRetriable returns whether the error is retriable
func (e *EngineError) IsRetriable() bool {
	return e.Retriable
}

// NewEngineError creates a new engine error
func NewEngineError(errType ErrorType, code string, message string, cause error) *EngineError {
	return &EngineError{
		Type:      errType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retriable: false,
		Cause:     cause,
	}
}

// NewTransientSourceError creates a retryable remote-fetch error
func NewTransientSourceError(message string, cause error) *EngineError {
	return &EngineError{
		Type:      ErrorTypeTransientSource,
		Code:      "source_unavailable",
		Message:   message,
		Timestamp: time.Now(),
		Retriable: true,
		Cause:     cause,
	}
}

// NewFatalSourceError creates the terminal error raised once the range-source
// retry budget is exhausted. The message names the failing stream and range.
func NewFatalSourceError(message string, cause error) *EngineError {
	return &EngineError{
		Type:      ErrorTypeFatalSource,
		Code:      "source_retries_exhausted",
		Message:   message,
		Timestamp: time.Now(),
		Retriable: false,
		Cause:     cause,
	}
}

// NewCacheIntegrityError creates an error for an unparseable partition file
func NewCacheIntegrityError(message string, cause error) *EngineError {
	return &EngineError{
		Type:      ErrorTypeCacheIntegrity,
		Code:      "partition_corrupt",
		Message:   message,
		Timestamp: time.Now(),
		Retriable: false,
		Cause:     cause,
	}
}

// NewUnsupportedOrderTypeError creates a per-order settlement rejection
func NewUnsupportedOrderTypeError(ordType string) *EngineError {
	return &EngineError{
		Type:      ErrorTypeUnsupportedOrderType,
		Code:      "unsupported_order_type",
		Message:   fmt.Sprintf("no fill semantics defined for ordType %q", ordType),
		Timestamp: time.Now(),
		Retriable: false,
	}
}

// NewParsingError creates a new parsing error
func NewParsingError(message string, cause error) *EngineError {
	return &EngineError{
		Type:      ErrorTypeParsing,
		Code:      "parse_error",
		Message:   message,
		Timestamp: time.Now(),
		Retriable: false,
		Cause:     cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(code string, message string) *EngineError {
	return &EngineError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Retriable: false,
	}
}

func isType(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	engineErr, ok := err.(*EngineError)
	if !ok {
		return false
	}
	return engineErr.Type == t
}

// IsTransientSourceError checks if the error is a retryable source error
func IsTransientSourceError(err error) bool {
	return isType(err, ErrorTypeTransientSource)
}

// IsFatalSourceError checks if the error is a fatal source error
func IsFatalSourceError(err error) bool {
	return isType(err, ErrorTypeFatalSource)
}

// IsCacheIntegrityError checks if the error is a cache integrity error
func IsCacheIntegrityError(err error) bool {
	return isType(err, ErrorTypeCacheIntegrity)
}

// IsUnsupportedOrderTypeError checks if the error is an unsupported-order-type error
func IsUnsupportedOrderTypeError(err error) bool {
	return isType(err, ErrorTypeUnsupportedOrderType)
}

// IsParsingError checks if the error is a parsing error
func IsParsingError(err error) bool {
	return isType(err, ErrorTypeParsing)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsRetriable checks if the error is retriable
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	engineErr, ok := err.(*EngineError)
	if !ok {
		return false
	}
	return engineErr.IsRetriable()
}
