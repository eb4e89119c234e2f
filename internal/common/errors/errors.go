// Package errors provides the standardized error taxonomy for the
// application lifecycle engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeInvalidEvent: the event is not defined from the current
	// state. A well-formed template makes this impossible, so it is a
	// configuration error, never shown to end users as recoverable.
	ErrCodeInvalidEvent ErrorCode = "INVALID_EVENT"

	// ErrCodeForbidden: the resolved role may not raise the event.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeGuardRejected: a transition guard evaluated false.
	ErrCodeGuardRejected ErrorCode = "GUARD_REJECTED"

	// ErrCodeValidationFailed: answers do not validate against the
	// target state's schema scope.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrCodePrerequisiteFetchFailed: a required external fetch failed;
	// the caller may retry the same event.
	ErrCodePrerequisiteFetchFailed ErrorCode = "PREREQUISITE_FETCH_FAILED"

	// ErrCodeVersionConflict: concurrent modification; reload and retry.
	ErrCodeVersionConflict ErrorCode = "VERSION_CONFLICT"

	// ErrCodePersistence: storage collaborator failure.
	ErrCodePersistence ErrorCode = "PERSISTENCE_ERROR"

	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeTemplateNotFound    ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateInvalid     ErrorCode = "TEMPLATE_INVALID"
)

// FieldError is one path-addressed validation failure, e.g. path
// "accident.date". The rendering layer uses the path to highlight the
// exact field.
type FieldError struct {
	Path    string `json:"path"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s: %s", f.Path, f.Message)
}

// TransitionError is the structured error returned by every engine
// operation that refuses or fails to apply a transition.
type TransitionError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *TransitionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("TransitionError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("TransitionError[%s]: %s", e.Code, e.Message)
}

func (e *TransitionError) Unwrap() error { return e.cause }

// FieldPaths returns the paths of all field errors, in order.
func (e *TransitionError) FieldPaths() []string {
	paths := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		paths[i] = f.Path
	}
	return paths
}

// NewInvalidEventError creates a non-retryable invalid event error.
func NewInvalidEventError(state, event string) *TransitionError {
	return &TransitionError{
		Code:      ErrCodeInvalidEvent,
		Message:   "Event not defined from current state",
		Details:   fmt.Sprintf("state: %s, event: %s", state, event),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable access error.
func NewForbiddenError(event string) *TransitionError {
	return &TransitionError{
		Code:      ErrCodeForbidden,
		Message:   "Caller is not permitted to raise this event",
		Details:   fmt.Sprintf("event: %s", event),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGuardRejectedError creates a non-retryable guard rejection that
// names the failing condition.
func NewGuardRejectedError(guard string) *TransitionError {
	return &TransitionError{
		Code:      ErrCodeGuardRejected,
		Message:   "Transition precondition not met",
		Details:   fmt.Sprintf("guard: %s", guard),
		Retryable: false,
		Metadata:  map[string]interface{}{"guard": guard},
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable, per-field validation
// error.
func NewValidationFailedError(fields []FieldError) *TransitionError {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.String()
	}
	return &TransitionError{
		Code:      ErrCodeValidationFailed,
		Message:   "Answers failed schema validation",
		Details:   strings.Join(msgs, "; "),
		Retryable: false,
		Fields:    fields,
		Timestamp: time.Now().UTC(),
	}
}

// NewPrerequisiteFetchFailedError creates a retryable error naming the
// required external data keys that could not be fetched.
func NewPrerequisiteFetchFailedError(keys []string, cause error) *TransitionError {
	return &TransitionError{
		Code:      ErrCodePrerequisiteFetchFailed,
		Message:   "Required external data fetch failed",
		Details:   fmt.Sprintf("keys: %s", strings.Join(keys, ", ")),
		Retryable: true,
		Metadata:  map[string]interface{}{"keys": keys},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewVersionConflictError creates a retryable concurrent-modification
// error. The documented recovery is to reload and retry the whole call.
func NewVersionConflictError(applicationID string) *TransitionError {
	return &TransitionError{
		Code:      ErrCodeVersionConflict,
		Message:   "Application was modified concurrently",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError wraps a storage collaborator failure. The engine
// never retries across the commit boundary itself.
func NewPersistenceError(err error) *TransitionError {
	return &TransitionError{
		Code:      ErrCodePersistence,
		Message:   "Storage collaborator failure",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewApplicationNotFoundError creates a non-retryable lookup error.
func NewApplicationNotFoundError(applicationID string) *TransitionError {
	return &TransitionError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable registry error.
func NewTemplateNotFoundError(typeID string) *TransitionError {
	return &TransitionError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Application template not found in registry",
		Details:   fmt.Sprintf("typeId: %s", typeID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateInvalidError creates a non-retryable template compilation
// error.
func NewTemplateInvalidError(typeID, details string) *TransitionError {
	return &TransitionError{
		Code:      ErrCodeTemplateInvalid,
		Message:   "Application template failed validation",
		Details:   fmt.Sprintf("typeId: %s: %s", typeID, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the error code from err, or empty if err is not a
// TransitionError.
func CodeOf(err error) ErrorCode {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsRetryable reports whether the caller may retry the same call.
func IsRetryable(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}
