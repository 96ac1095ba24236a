package domain

import (
	"errors"
	"fmt"
)

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

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeRateLimited      = "RATE_LIMITED"
)

// Pipeline error codes
const (
	ErrCodeIngestion   = "INGESTION_ERROR"
	ErrCodeEmbedding   = "EMBEDDING_ERROR"
	ErrCodeRetrieval   = "RETRIEVAL_ERROR"
	ErrCodeNewsFetch   = "NEWS_FETCH_ERROR"
	ErrCodeCompletion  = "COMPLETION_ERROR"
	ErrCodePersistence = "PERSISTENCE_ERROR"
	ErrCodeMarketData  = "MARKET_DATA_ERROR"
)

// NewIngestionError reports a source document that could not be read or decoded.
func NewIngestionError(sourceID string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeIngestion, fmt.Sprintf("failed to ingest %s", sourceID), err)
}

func NewEmbeddingError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, "embedding request failed", err)
}

func NewRetrievalError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeRetrieval, "knowledge retrieval failed", err)
}

func NewNewsFetchError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeNewsFetch, "news fetch failed", err)
}

func NewCompletionError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeCompletion, "completion request failed", err)
}

// NewPersistenceError must reach the caller; a turn that failed to persist
// is never reported as successful.
func NewPersistenceError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodePersistence, "failed to persist chat history", err)
}

func NewMarketDataError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeMarketData, "market data request failed", err)
}

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrQueryTooLong         = NewDomainError(ErrCodeValidation, "query exceeds maximum length")
	ErrInvalidRole          = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidExportFormat  = NewDomainError(ErrCodeValidation, "invalid export format")
	ErrUnknownSymbol        = NewDomainError(ErrCodeValidation, "unknown coin symbol")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "chat session not found")
	ErrUserNotFound    = NewDomainError(ErrCodeNotFound, "user not found")
	ErrAPIKeyNotFound  = NewDomainError(ErrCodeNotFound, "api key not found")
	ErrSourceNotFound  = NewDomainError(ErrCodeNotFound, "source document not found")
)

// Already exists errors
var (
	ErrUserAlreadyExists   = NewDomainError(ErrCodeAlreadyExists, "user already exists")
	ErrAPIKeyAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Operation errors
var (
	ErrEmptySession = NewDomainError(ErrCodeInvalidOperation, "no chat history to export")
	ErrRateLimited  = NewDomainError(ErrCodeRateLimited, "too many messages, please wait before sending another")
	ErrStorageUnset = NewDomainError(ErrCodeInvalidOperation, "object storage is not configured")
)
