package domain

import (
	"fmt"
	"time"
)

// Segment is a bounded, contiguous slice of a source document and the unit
// of retrieval. Segments are immutable: re-ingestion replaces them by ID.
type Segment struct {
	ID          string
	SourceID    string
	Ordinal     int
	Content     string
	OverlapPrev int // runes shared with the previous segment of the same source
	CreatedAt   time.Time
}

// SegmentID derives the stable identifier of the ordinal-th segment of a source.
func SegmentID(sourceID string, ordinal int) string {
	return fmt.Sprintf("%s#%05d", sourceID, ordinal)
}

// Embedding is a vector produced for a segment or a query.
type Embedding struct {
	OwnerID string
	Vector  []float32
	Model   string
}

// RetrievalResult pairs a segment with its similarity to the query.
type RetrievalResult struct {
	Segment Segment
	Score   float32
}

// SegmentFilter restricts retrieval to the given source ids. Empty means no restriction.
type SegmentFilter struct {
	SourceIDs []string
}

// Allows reports whether the filter admits a segment from sourceID.
func (f SegmentFilter) Allows(sourceID string) bool {
	if len(f.SourceIDs) == 0 {
		return true
	}
	for _, id := range f.SourceIDs {
		if id == sourceID {
			return true
		}
	}
	return false
}

// Source records an ingested document.
type Source struct {
	ID           string
	ContentHash  string
	SegmentCount int
	IngestedAt   time.Time
}

// KnowledgeStats summarises the vector store contents.
type KnowledgeStats struct {
	Sources  int
	Segments int
}

func ValidateSegment(s *Segment) error {
	if s == nil {
		return fmt.Errorf("segment cannot be nil")
	}
	if s.SourceID == "" {
		return fmt.Errorf("segment SourceID is required")
	}
	if s.Ordinal < 0 {
		return fmt.Errorf("segment Ordinal must be non-negative")
	}
	if s.ID != SegmentID(s.SourceID, s.Ordinal) {
		return fmt.Errorf("segment ID %q does not match source and ordinal", s.ID)
	}
	if s.Content == "" {
		return fmt.Errorf("segment Content is required")
	}
	return nil
}
