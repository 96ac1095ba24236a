package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

func TestKnowledgeHandler_Sources(t *testing.T) {
	kb := new(MockKnowledge)
	kb.On("List", mock.Anything).Return([]*domain.Source{
		{ID: "bitcoin.pdf", ContentHash: "abc", SegmentCount: 12, IngestedAt: time.Unix(0, 0)},
	}, nil)
	kb.On("Stats", mock.Anything).Return(&domain.KnowledgeStats{Sources: 1, Segments: 12}, nil)

	w := httptest.NewRecorder()
	NewKnowledgeHandler(kb, kb, kb).Sources(w, withRoute(httptest.NewRequest(http.MethodGet, "/api/knowledge/sources", nil), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"bitcoin.pdf"`)
	assert.Contains(t, w.Body.String(), `"segments":12`)
}

func TestKnowledgeHandler_Sources_StoreFailure(t *testing.T) {
	kb := new(MockKnowledge)
	kb.On("List", mock.Anything).Return(nil, errors.New("connection refused"))

	w := httptest.NewRecorder()
	NewKnowledgeHandler(kb, kb, kb).Sources(w, withRoute(httptest.NewRequest(http.MethodGet, "/", nil), nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestKnowledgeHandler_Search(t *testing.T) {
	kb := new(MockKnowledge)
	filter := domain.SegmentFilter{SourceIDs: []string{"a.md", "b.md"}}
	kb.On("Retrieve", mock.Anything, "proof of work", 5, filter).Return([]domain.RetrievalResult{
		{Segment: domain.Segment{ID: "a.md#00000", SourceID: "a.md", Content: "Miners hash blocks."}, Score: 0.91},
	}, nil)

	w := httptest.NewRecorder()
	req := withRoute(httptest.NewRequest(http.MethodGet, "/api/knowledge/search?q=proof+of+work&k=5&source=a.md&source=b.md", nil), nil)
	NewKnowledgeHandler(kb, kb, kb).Search(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source_id":"a.md"`)
	kb.AssertExpectations(t)
}

func TestKnowledgeHandler_Search_Validation(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing query", "/api/knowledge/search"},
		{"k too large", "/api/knowledge/search?q=btc&k=21"},
		{"k not a number", "/api/knowledge/search?q=btc&k=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := new(MockKnowledge)
			w := httptest.NewRecorder()
			NewKnowledgeHandler(kb, kb, kb).Search(w, withRoute(httptest.NewRequest(http.MethodGet, tt.url, nil), nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			kb.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
