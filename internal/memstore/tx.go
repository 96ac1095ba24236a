package memstore

import (
	"context"
	"sync"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

// TxRunner serialises transactions over a VectorStore. Writes are applied
// directly; a failed fn restores the store to its state before the call.
type TxRunner struct {
	txMu  sync.Mutex
	store *VectorStore
}

func NewTxRunner(store *VectorStore) *TxRunner {
	return &TxRunner{store: store}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	snapshot := r.store.snapshot()
	if err := fn(txRepos{store: r.store}); err != nil {
		r.store.restore(snapshot)
		return err
	}
	return nil
}

type txRepos struct {
	store *VectorStore
}

func (t txRepos) Segments() service.SegmentStore { return t.store }

func (t txRepos) Sources() service.SourceStore { return t.store.Sources() }

type vectorSnapshot struct {
	segments map[string]storedSegment
	sources  map[string]domain.Source
}

func (s *VectorStore) snapshot() vectorSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := vectorSnapshot{
		segments: make(map[string]storedSegment, len(s.segments)),
		sources:  make(map[string]domain.Source, len(s.sources)),
	}
	for k, v := range s.segments {
		snap.segments[k] = v
	}
	for k, v := range s.sources {
		snap.sources[k] = v
	}
	return snap
}

func (s *VectorStore) restore(snap vectorSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments = snap.segments
	s.sources = snap.sources
}
