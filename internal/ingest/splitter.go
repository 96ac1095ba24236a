package ingest

import (
	"fmt"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

const (
	DefaultMaxChars = 500
	DefaultOverlap  = 50
)

// Splitter cuts text into fixed rune windows where each window after the
// first repeats the last Overlap runes of its predecessor.
type Splitter struct {
	MaxChars int
	Overlap  int
}

func NewSplitter(maxChars, overlap int) (Splitter, error) {
	s := Splitter{MaxChars: maxChars, Overlap: overlap}
	if err := s.Validate(); err != nil {
		return Splitter{}, err
	}
	return s, nil
}

func (s Splitter) Validate() error {
	if s.MaxChars <= 0 {
		return fmt.Errorf("max chars must be positive, got %d", s.MaxChars)
	}
	if s.Overlap < 0 || s.Overlap >= s.MaxChars {
		return fmt.Errorf("overlap must be in [0, %d), got %d", s.MaxChars, s.Overlap)
	}
	return nil
}

// Split returns the segments of text for sourceID in ordinal order.
func (s Splitter) Split(sourceID, text string) ([]domain.Segment, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	segments := make([]domain.Segment, 0, n/(s.MaxChars-s.Overlap)+1)
	for start := 0; ; start = start + s.MaxChars - s.Overlap {
		end := min(start+s.MaxChars, n)
		ordinal := len(segments)
		overlap := 0
		if ordinal > 0 {
			overlap = s.Overlap
		}
		segments = append(segments, domain.Segment{
			ID:          domain.SegmentID(sourceID, ordinal),
			SourceID:    sourceID,
			Ordinal:     ordinal,
			Content:     string(runes[start:end]),
			OverlapPrev: overlap,
		})
		if end == n {
			break
		}
	}
	return segments, nil
}
