package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeInvalidOperation     = "INVALID_OPERATION"
	ErrCodeRetrievalUnavailable = "RETRIEVAL_UNAVAILABLE"
	ErrCodeGenerationTimeout    = "GENERATION_TIMEOUT"
	ErrCodeGenerationError      = "GENERATION_ERROR"
)

// Validation errors
var (
	ErrEmptyTranscript      = NewDomainError(ErrCodeValidation, "transcript text is empty")
	ErrInvalidNoteStatus    = NewDomainError(ErrCodeValidation, "invalid note status")
	ErrInvalidJobStatus     = NewDomainError(ErrCodeValidation, "invalid generation job status")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrNoteNotFound       = NewDomainError(ErrCodeNotFound, "note not found")
	ErrPatientNotFound    = NewDomainError(ErrCodeNotFound, "patient not found")
	ErrDoctorNotFound     = NewDomainError(ErrCodeNotFound, "doctor not found")
	ErrAttachmentNotFound = NewDomainError(ErrCodeNotFound, "attachment not found")
)

// Already exists errors
var (
	ErrDoctorAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "doctor already exists")
)

// Authorization errors
var (
	ErrInvalidAPIToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// Pipeline errors. These never reach a client directly: the orchestrator
// converts them into Note.Status = FAILED plus a stored reason code.
var (
	ErrRetrievalUnavailable = NewDomainError(ErrCodeRetrievalUnavailable, "embedding store unreachable")
	ErrGenerationTimeout    = NewDomainError(ErrCodeGenerationTimeout, "model generation timed out")
	ErrGenerationFailed     = NewDomainError(ErrCodeGenerationError, "model generation failed")
)

// Operation errors
var (
	ErrNoteNotTerminal  = NewDomainError(ErrCodeInvalidOperation, "note is still processing and cannot be edited")
	ErrTerminalStatus   = NewDomainError(ErrCodeInvalidOperation, "note already reached a terminal status")
	ErrNoteNotCompleted = NewDomainError(ErrCodeInvalidOperation, "note has not completed generation")
)
