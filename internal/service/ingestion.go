package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/ingest"
	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
	"github.com/cloo-solutions/cryptoadvisor/internal/telemetry"
)

const defaultEmbedConcurrency = 4

type IngestionConfig struct {
	Splitter    ingest.Splitter
	Model       string
	Embedding   RetryPolicy
	Concurrency int
}

// IngestionService loads source documents, splits them into segments and
// stores their embeddings. A document is replaced as a whole or not at all.
type IngestionService struct {
	source   ingest.Source
	embedder EmbeddingClient
	sources  SourceStore
	tx       TxRunner
	cfg      IngestionConfig
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewIngestionService(
	source ingest.Source,
	embedder EmbeddingClient,
	sources SourceStore,
	tx TxRunner,
	cfg IngestionConfig,
	logger logrus.FieldLogger,
) (*IngestionService, error) {
	if cfg.Splitter == (ingest.Splitter{}) {
		cfg.Splitter = ingest.Splitter{MaxChars: ingest.DefaultMaxChars, Overlap: ingest.DefaultOverlap}
	}
	if err := cfg.Splitter.Validate(); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid splitter configuration", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultEmbedConcurrency
	}
	return &IngestionService{
		source:   source,
		embedder: embedder,
		sources:  sources,
		tx:       tx,
		cfg:      cfg,
		logger:   logging.OrDiscard(logger),
		now:      time.Now,
	}, nil
}

type IngestOptions struct {
	// Force re-embeds documents whose content did not change.
	Force bool
}

type IngestFailure struct {
	SourceID string
	Err      error
}

type IngestReport struct {
	Ingested    []string
	Skipped     []string
	Unsupported []string
	Failed      []IngestFailure
	Segments    int
}

// IngestAll processes every document of the source. A document that cannot
// be loaded or embedded is reported in Failed and does not stop the run.
// The returned error is set only when the source cannot be listed or ctx ends.
func (s *IngestionService) IngestAll(ctx context.Context, opts IngestOptions) (*IngestReport, error) {
	ctx, span := telemetry.StartTransaction(ctx, "ingest.all", "ingest")
	defer span.End()

	entries, err := s.source.List(ctx)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewIngestionError(s.source.Name(), err)
	}

	report := &IngestReport{
		Ingested:    []string{},
		Skipped:     []string{},
		Unsupported: []string{},
		Failed:      []IngestFailure{},
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !ingest.Supported(e) {
			report.Unsupported = append(report.Unsupported, e.ID)
			continue
		}

		n, err := s.IngestEntry(ctx, e, opts)
		switch {
		case errors.Is(err, ErrDocumentUnchanged):
			report.Skipped = append(report.Skipped, e.ID)
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			s.logger.WithError(err).WithField("source_id", e.ID).Warn("document ingestion failed")
			report.Failed = append(report.Failed, IngestFailure{SourceID: e.ID, Err: err})
		default:
			report.Ingested = append(report.Ingested, e.ID)
			report.Segments += n
		}
	}

	s.logger.WithFields(logrus.Fields{
		"source":      s.source.Name(),
		"ingested":    len(report.Ingested),
		"skipped":     len(report.Skipped),
		"unsupported": len(report.Unsupported),
		"failed":      len(report.Failed),
		"segments":    report.Segments,
	}).Info("ingestion finished")
	return report, nil
}

// ErrDocumentUnchanged is returned by IngestEntry for documents already stored
// with the same content.
var ErrDocumentUnchanged = errors.New("document unchanged")

// IngestEntry ingests a single document and returns the number of segments
// written, or ErrDocumentUnchanged when the stored content hash matches and
// opts.Force is false.
func (s *IngestionService) IngestEntry(ctx context.Context, e ingest.Entry, opts IngestOptions) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.document", telemetry.SpanAttributes{SourceID: e.ID, Operation: "ingest"})
	defer span.End()

	doc, err := ingest.Load(ctx, s.source, e)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	if !opts.Force {
		existing, err := s.sources.Get(ctx, doc.ID)
		switch {
		case err == nil && existing.ContentHash == doc.ContentHash:
			return 0, ErrDocumentUnchanged
		case err != nil && !domain.HasCode(err, domain.ErrCodeNotFound):
			return 0, domain.NewPersistenceError(err)
		}
	}

	segments, err := s.cfg.Splitter.Split(doc.ID, doc.Text)
	if err != nil {
		return 0, domain.NewIngestionError(doc.ID, err)
	}

	vectors, err := s.embedAll(ctx, segments)
	if err != nil {
		span.SetError(err)
		return 0, domain.NewIngestionError(doc.ID, err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	for i := range segments {
		segments[i].CreatedAt = now
	}

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Segments().UpsertBatch(ctx, segments, vectors, s.cfg.Model); err != nil {
			return fmt.Errorf("upsert segments: %w", err)
		}
		if _, err := repos.Segments().PruneSource(ctx, doc.ID, len(segments)); err != nil {
			return fmt.Errorf("prune stale segments: %w", err)
		}
		return repos.Sources().Upsert(ctx, &domain.Source{
			ID:           doc.ID,
			ContentHash:  doc.ContentHash,
			SegmentCount: len(segments),
			IngestedAt:   now,
		})
	})
	if err != nil {
		span.SetError(err)
		return 0, domain.NewPersistenceError(err)
	}

	s.logger.WithFields(logrus.Fields{"source_id": doc.ID, "segments": len(segments)}).Debug("document ingested")
	return len(segments), nil
}

func (s *IngestionService) embedAll(ctx context.Context, segments []domain.Segment) ([][]float32, error) {
	vectors := make([][]float32, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range segments {
		g.Go(func() error {
			return s.cfg.Embedding.Do(gctx, func(ctx context.Context) error {
				v, err := s.embedder.GenerateEmbedding(ctx, segments[i].Content)
				if err != nil {
					return domain.NewEmbeddingError(err)
				}
				vectors[i] = v
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Sources lists the ingested documents.
func (s *IngestionService) Sources(ctx context.Context) ([]*domain.Source, error) {
	return s.sources.List(ctx)
}
