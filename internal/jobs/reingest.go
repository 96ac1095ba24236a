package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

// Ingester is the part of the ingestion service driven by background jobs.
type Ingester interface {
	IngestAll(ctx context.Context, opts service.IngestOptions) (*service.IngestReport, error)
}

// ReingestProcessor refreshes the knowledge base from its document source.
// Unchanged documents are skipped by the ingester, so a run over an idle
// corpus costs one listing and no embedding calls.
type ReingestProcessor struct {
	ingester Ingester
	logger   logrus.FieldLogger
	mu       sync.Mutex
}

func NewReingestProcessor(ingester Ingester, logger logrus.FieldLogger) *ReingestProcessor {
	return &ReingestProcessor{
		ingester: ingester,
		logger:   logging.OrDiscard(logger).WithField("component", "reingest"),
	}
}

// ProcessJobs runs one ingestion pass. A pass that starts while another is
// still running is skipped.
func (p *ReingestProcessor) ProcessJobs(ctx context.Context) error {
	if !p.mu.TryLock() {
		p.logger.Debug("ingestion already running, skipping")
		return nil
	}
	defer p.mu.Unlock()

	start := time.Now()
	report, err := p.ingester.IngestAll(ctx, service.IngestOptions{})
	if err != nil {
		return fmt.Errorf("failed to reingest documents: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"changed":     len(report.Ingested),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("reingest pass complete")
	return nil
}
