package registration

import (
	"errors"
	"fmt"
)

// ErrEmptyCommand is returned when a command has no text to interpret.
var ErrEmptyCommand = errors.New("command text is empty")

// ErrInvalidPlan is the sentinel wrapped by Plan.Validate failures.
var ErrInvalidPlan = errors.New("invalid directory plan")

type ExtractionErrorKind string

const (
	ExtractionMalformedResponse   ExtractionErrorKind = "MalformedResponse"
	ExtractionUpstreamUnavailable ExtractionErrorKind = "UpstreamUnavailable"
)

// ExtractionError reports that a command could not be turned into an intent.
type ExtractionError struct {
	Kind   ExtractionErrorKind
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s): %s", e.Kind, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func NewMalformedResponseError(reason string, err error) *ExtractionError {
	return &ExtractionError{Kind: ExtractionMalformedResponse, Reason: reason, Err: err}
}

func NewUpstreamUnavailableError(reason string, err error) *ExtractionError {
	return &ExtractionError{Kind: ExtractionUpstreamUnavailable, Reason: reason, Err: err}
}

// IsExtractionError returns true when err is (or wraps) an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

type ValidationErrorKind string

const (
	ValidationUnsupportedOperation   ValidationErrorKind = "UnsupportedOperation"
	ValidationInvalidName            ValidationErrorKind = "InvalidName"
	ValidationUnknownPermission      ValidationErrorKind = "UnknownPermission"
	ValidationNoPermissionsSpecified ValidationErrorKind = "NoPermissionsSpecified"
)

// ValidationError reports an intent that is incomplete or not allowed.
// Value holds the offending input when there is one.
type ValidationError struct {
	Kind   ValidationErrorKind
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Reason)
}

// IsValidationError returns true when err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationKindOf returns the kind of a wrapped ValidationError, or "".
func ValidationKindOf(err error) ValidationErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

type DirectoryErrorKind string

const (
	DirectoryRemoteRejected       DirectoryErrorKind = "RemoteRejected"
	DirectoryRemoteUnavailable    DirectoryErrorKind = "RemoteUnavailable"
	DirectoryRequiresAdminConsent DirectoryErrorKind = "PermissionAssignmentRequiresAdminConsent"
)

// DirectoryStepError is returned by DirectoryService implementations.
// Step is filled in by the orchestrator.
type DirectoryStepError struct {
	Kind       DirectoryErrorKind
	Step       StepKind
	StatusCode int
	Reason     string
	Err        error
}

func (e *DirectoryStepError) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Step != "" {
		msg = fmt.Sprintf("%s failed (%s)", e.Step, e.Kind)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *DirectoryStepError) Unwrap() error { return e.Err }

func NewDirectoryStepError(kind DirectoryErrorKind, status int, reason string, err error) *DirectoryStepError {
	return &DirectoryStepError{Kind: kind, StatusCode: status, Reason: reason, Err: err}
}

// IsDirectoryStepError returns true when err is (or wraps) a DirectoryStepError.
func IsDirectoryStepError(err error) bool {
	var de *DirectoryStepError
	return errors.As(err, &de)
}

// IsAdminConsentRequired reports whether a directory failure needs an administrator.
func IsAdminConsentRequired(err error) bool {
	var de *DirectoryStepError
	return errors.As(err, &de) && de.Kind == DirectoryRequiresAdminConsent
}
