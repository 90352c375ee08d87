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
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrEmptyQuery          = NewDomainError(ErrCodeValidation, "query text is empty")
	ErrInvalidChunkLimit   = NewDomainError(ErrCodeValidation, "chunk limit must be positive")
	ErrInvalidEntityLimit  = NewDomainError(ErrCodeValidation, "entity limit must be positive")
	ErrInvalidOversample   = NewDomainError(ErrCodeValidation, "oversample factor must be positive")
	ErrInvalidPropertyKey  = NewDomainError(ErrCodeValidation, "unknown entity property key")
	ErrMissingRequiredData = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrEntityNotFound   = NewDomainError(ErrCodeNotFound, "entity not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "source document not found")
)

// Availability errors. Vector search is the primary retrieval channel,
// so callers must see these rather than an empty result.
var (
	ErrVectorIndexUnavailable = NewDomainError(ErrCodeUnavailable, "vector index unavailable")
	ErrEmbeddingUnavailable   = NewDomainError(ErrCodeUnavailable, "embedding provider unavailable")
	ErrStorageUnavailable     = NewDomainError(ErrCodeUnavailable, "source document storage unavailable")
)
