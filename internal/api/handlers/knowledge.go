package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

const maxSearchK = 20

type KnowledgeSearcher interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error)
}

type KnowledgeCatalog interface {
	List(ctx context.Context) ([]*domain.Source, error)
}

type KnowledgeStats interface {
	Stats(ctx context.Context) (*domain.KnowledgeStats, error)
}

type KnowledgeHandler struct {
	searcher KnowledgeSearcher
	catalog  KnowledgeCatalog
	stats    KnowledgeStats
}

func NewKnowledgeHandler(searcher KnowledgeSearcher, catalog KnowledgeCatalog, stats KnowledgeStats) *KnowledgeHandler {
	return &KnowledgeHandler{searcher: searcher, catalog: catalog, stats: stats}
}

type SourceResponse struct {
	ID           string `json:"id"`
	ContentHash  string `json:"content_hash"`
	SegmentCount int    `json:"segment_count"`
	IngestedAt   string `json:"ingested_at"`
}

type SourcesResponse struct {
	Sources  []SourceResponse `json:"sources"`
	Segments int              `json:"segments"`
}

type SearchResponse struct {
	Query   string            `json:"query"`
	Results []SegmentResponse `json:"results"`
}

// Sources handles GET /api/knowledge/sources.
func (h *KnowledgeHandler) Sources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.catalog.List(r.Context())
	if err != nil {
		api.HandleError(w, domain.NewPersistenceError(err))
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		api.HandleError(w, domain.NewPersistenceError(err))
		return
	}

	resp := SourcesResponse{Sources: make([]SourceResponse, 0, len(sources)), Segments: stats.Segments}
	for _, s := range sources {
		resp.Sources = append(resp.Sources, SourceResponse{
			ID:           s.ID,
			ContentHash:  s.ContentHash,
			SegmentCount: s.SegmentCount,
			IngestedAt:   s.IngestedAt.UTC().Format(timeLayout),
		})
	}
	api.Success(w, http.StatusOK, resp)
}

// Search handles GET /api/knowledge/search?q=&k=&source=.
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := service.ValidateQuery(r.URL.Query().Get("q"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSearchK {
			api.Error(w, http.StatusBadRequest, "k must be between 1 and 20")
			return
		}
		k = n
	}

	var filter domain.SegmentFilter
	for _, s := range r.URL.Query()["source"] {
		if s = strings.TrimSpace(s); s != "" {
			filter.SourceIDs = append(filter.SourceIDs, s)
		}
	}

	results, err := h.searcher.Retrieve(r.Context(), query, k, filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, SearchResponse{Query: query, Results: segmentsToResponse(results)})
}
