package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeValidation, "query cannot be empty")
	assert.Equal(t, "[VALIDATION_ERROR] query cannot be empty", err.Error())

	cause := errors.New("connection refused")
	wrapped := NewDomainErrorWithCause(ErrCodeRetrieval, "knowledge retrieval failed", cause)
	assert.Equal(t, "[RETRIEVAL_ERROR] knowledge retrieval failed: connection refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestCodeOf_WrappedChain(t *testing.T) {
	err := fmt.Errorf("turn failed: %w", NewCompletionError(errors.New("timeout")))

	assert.Equal(t, ErrCodeCompletion, CodeOf(err))
	assert.True(t, HasCode(err, ErrCodeCompletion))
	assert.False(t, HasCode(err, ErrCodePersistence))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestPipelineErrorConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  *DomainError
		code string
	}{
		{"ingestion", NewIngestionError("guide.pdf", cause), ErrCodeIngestion},
		{"embedding", NewEmbeddingError(cause), ErrCodeEmbedding},
		{"retrieval", NewRetrievalError(cause), ErrCodeRetrieval},
		{"news", NewNewsFetchError(cause), ErrCodeNewsFetch},
		{"completion", NewCompletionError(cause), ErrCodeCompletion},
		{"persistence", NewPersistenceError(cause), ErrCodePersistence},
		{"market", NewMarketDataError(cause), ErrCodeMarketData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.ErrorIs(t, tt.err, cause)
		})
	}

	assert.Contains(t, NewIngestionError("guide.pdf", cause).Error(), "guide.pdf")
}
