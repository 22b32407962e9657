package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Base error types. Insufficient data is deliberately absent: detectors
// signal it by returning empty results, never an error.
var (
	ErrInvalidEvent       = errors.New("invalid event")
	ErrInvalidInput       = errors.New("invalid input")
	ErrThresholdLoad      = errors.New("threshold load failure")
	ErrCancelled          = errors.New("cancelled")
	ErrInvariantViolation = errors.New("internal invariant violation")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeInvalidEvent  ErrorType = "invalid_event"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeThresholdLoad ErrorType = "threshold_load"
	ErrorTypeCancelled     ErrorType = "cancelled"
	ErrorTypeInvariant     ErrorType = "invariant"
)

// DetectionError is a structured error for detection operations
type DetectionError struct {
	Type           ErrorType
	Op             string // Operation that failed (e.g., "normalize_event", "load_thresholds")
	Component      string // Detector or subsystem name if applicable
	OrganizationID string
	Err            error // Underlying error
	Timestamp      time.Time
	Retryable      bool
	ReferenceID    string // Opaque identifier surfaced for invariant violations
}

func (e *DetectionError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s failed in %s: %v", e.Op, e.Component, e.Err)
	}
	if e.OrganizationID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.OrganizationID, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *DetectionError) Is(target error) bool {
	if target == nil {
		return false
	}

	// Check base error types
	switch target {
	case ErrInvalidEvent:
		return e.Type == ErrorTypeInvalidEvent
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	case ErrThresholdLoad:
		return e.Type == ErrorTypeThresholdLoad
	case ErrCancelled:
		return e.Type == ErrorTypeCancelled
	case ErrInvariantViolation:
		return e.Type == ErrorTypeInvariant
	}

	// Check wrapped error
	return errors.Is(e.Err, target)
}

// NewDetectionError creates a new DetectionError
func NewDetectionError(errorType ErrorType, op string, err error) *DetectionError {
	return &DetectionError{
		Type:      errorType,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: isRetryable(errorType),
	}
}

// WithComponent adds the detector or subsystem name to the error
func (e *DetectionError) WithComponent(component string) *DetectionError {
	e.Component = component
	return e
}

// WithOrganization adds the organization context to the error
func (e *DetectionError) WithOrganization(orgID string) *DetectionError {
	e.OrganizationID = orgID
	return e
}

// WithReference attaches the opaque identifier handed to operators for
// root-cause analysis of invariant violations
func (e *DetectionError) WithReference(id string) *DetectionError {
	e.ReferenceID = id
	return e
}

// isRetryable determines if an error class is worth retrying. Only threshold
// loads are; everything else is deterministic over the same input.
func isRetryable(errorType ErrorType) bool {
	return errorType == ErrorTypeThresholdLoad
}

// Helper functions

// WrapInvalidEvent wraps a normalization failure with context
func WrapInvalidEvent(op string, err error) error {
	return NewDetectionError(ErrorTypeInvalidEvent, op, err)
}

// WrapInvalidInput wraps an out-of-range or malformed argument failure
func WrapInvalidInput(op string, err error) error {
	return NewDetectionError(ErrorTypeValidation, op, err)
}

// WrapThresholdLoad wraps a threshold store load failure with the
// organization it occurred for
func WrapThresholdLoad(op, orgID string, err error) error {
	return NewDetectionError(ErrorTypeThresholdLoad, op, err).WithOrganization(orgID)
}

// NewInvariantViolation reports a bug-class fault (e.g. confidence outside
// [0,100] after clamping) with an opaque reference for the logs
func NewInvariantViolation(op, component, referenceID string, err error) error {
	return NewDetectionError(ErrorTypeInvariant, op, err).
		WithComponent(component).
		WithReference(referenceID)
}

// IsInvalidEvent checks if an error marks a dropped event
func IsInvalidEvent(err error) bool {
	return errors.Is(err, ErrInvalidEvent)
}

// IsInvalidInput checks if an error marks rejected caller input
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsCancelled checks for engine or context cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsInvariantViolation checks for bug-class faults that abort a pass
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	var detErr *DetectionError
	if errors.As(err, &detErr) {
		return detErr.Retryable
	}
	return errors.Is(err, ErrThresholdLoad)
}
