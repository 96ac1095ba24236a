// Package memstore holds process-local implementations of the knowledge and
// chat stores, used by tests and single-process tooling.
package memstore

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

var ErrVectorCount = errors.New("segments and vectors differ in length")

type storedSegment struct {
	segment domain.Segment
	vector  []float32
	norm    float64
	model   string
}

// VectorStore is an in-memory segment and source store using cosine similarity.
type VectorStore struct {
	mu       sync.RWMutex
	segments map[string]storedSegment
	sources  map[string]domain.Source
	now      func() time.Time
}

func NewVectorStore() *VectorStore {
	return &VectorStore{
		segments: make(map[string]storedSegment),
		sources:  make(map[string]domain.Source),
		now:      time.Now,
	}
}

func (s *VectorStore) UpsertBatch(_ context.Context, segments []domain.Segment, vectors [][]float32, model string) error {
	if len(segments) != len(vectors) {
		return ErrVectorCount
	}
	for i := range segments {
		if err := domain.ValidateSegment(&segments[i]); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, seg := range segments {
		if seg.CreatedAt.IsZero() {
			seg.CreatedAt = s.now().UTC()
		}
		vec := append([]float32(nil), vectors[i]...)
		s.segments[seg.ID] = storedSegment{segment: seg, vector: vec, norm: norm(vec), model: model}
	}
	return nil
}

func (s *VectorStore) Query(_ context.Context, vector []float32, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error) {
	results := []domain.RetrievalResult{}
	if k <= 0 {
		return results, nil
	}
	qnorm := norm(vector)

	s.mu.RLock()
	for _, st := range s.segments {
		if !filter.Allows(st.segment.SourceID) {
			continue
		}
		results = append(results, domain.RetrievalResult{
			Segment: st.segment,
			Score:   cosine(vector, st.vector, qnorm, st.norm),
		})
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Segment.ID < results[j].Segment.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *VectorStore) PruneSource(_ context.Context, sourceID string, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, st := range s.segments {
		if st.segment.SourceID == sourceID && st.segment.Ordinal >= keep {
			delete(s.segments, id)
			removed++
		}
	}
	return removed, nil
}

func (s *VectorStore) Stats(_ context.Context) (*domain.KnowledgeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &domain.KnowledgeStats{Sources: len(s.sources), Segments: len(s.segments)}, nil
}

// Sources exposes the source records of the store.
func (s *VectorStore) Sources() *SourceStore {
	return &SourceStore{vs: s}
}

// SourceStore shares the lock and maps of its VectorStore.
type SourceStore struct {
	vs *VectorStore
}

func (s *SourceStore) Get(_ context.Context, id string) (*domain.Source, error) {
	s.vs.mu.RLock()
	defer s.vs.mu.RUnlock()
	src, ok := s.vs.sources[id]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	return &src, nil
}

func (s *SourceStore) Upsert(_ context.Context, src *domain.Source) error {
	if src == nil || src.ID == "" {
		return domain.ErrMissingRequiredField
	}
	s.vs.mu.Lock()
	defer s.vs.mu.Unlock()
	s.vs.sources[src.ID] = *src
	return nil
}

func (s *SourceStore) List(_ context.Context) ([]*domain.Source, error) {
	s.vs.mu.RLock()
	defer s.vs.mu.RUnlock()
	out := make([]*domain.Source, 0, len(s.vs.sources))
	for _, src := range s.vs.sources {
		src := src
		out = append(out, &src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float32 {
	if na == 0 || nb == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (na * nb))
}
