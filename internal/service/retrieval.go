package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
)

// EmbeddingClient generates embeddings for text.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type RetrievalConfig struct {
	TopK      int
	Variants  int
	Embedding RetryPolicy
	Query     RetryPolicy
}

// RetrievalService finds the knowledge segments most similar to a query.
type RetrievalService struct {
	embedder EmbeddingClient
	store    SegmentStore
	cfg      RetrievalConfig
	logger   logrus.FieldLogger
}

func NewRetrievalService(embedder EmbeddingClient, store SegmentStore, cfg RetrievalConfig, logger logrus.FieldLogger) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logging.OrDiscard(logger),
	}
}

// Retrieve returns at most k segments (the configured top-k when k <= 0).
// With query variants enabled, each variant is searched and the rankings
// are fused.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		k = s.cfg.TopK
	}

	first, err := s.search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	variants := queryVariants(query, s.cfg.Variants)
	if len(variants) == 0 {
		return first, nil
	}

	lists := [][]domain.RetrievalResult{first}
	for _, v := range variants {
		results, err := s.search(ctx, v, k, filter)
		if err != nil {
			s.logger.WithError(err).WithField("variant", v).Warn("query variant search failed")
			continue
		}
		lists = append(lists, results)
	}
	return fuseRankings(lists, k), nil
}

func (s *RetrievalService) search(ctx context.Context, text string, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error) {
	var vector []float32
	err := s.cfg.Embedding.Do(ctx, func(ctx context.Context) error {
		var err error
		vector, err = s.embedder.GenerateEmbedding(ctx, text)
		return err
	})
	if err != nil {
		return nil, domain.NewEmbeddingError(err)
	}

	var results []domain.RetrievalResult
	err = s.cfg.Query.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = s.store.Query(ctx, vector, k, filter)
		return err
	})
	if err != nil {
		return nil, domain.NewRetrievalError(err)
	}
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	return results, nil
}
