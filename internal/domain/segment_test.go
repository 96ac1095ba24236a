package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentID(t *testing.T) {
	assert.Equal(t, "rsi.txt#00000", SegmentID("rsi.txt", 0))
	assert.Equal(t, "guides/macd.pdf#00012", SegmentID("guides/macd.pdf", 12))
	assert.Less(t, SegmentID("a.txt", 2), SegmentID("a.txt", 10))
}

func TestSegmentFilter_Allows(t *testing.T) {
	assert.True(t, SegmentFilter{}.Allows("anything.txt"))

	f := SegmentFilter{SourceIDs: []string{"a.txt", "b.txt"}}
	assert.True(t, f.Allows("a.txt"))
	assert.False(t, f.Allows("c.txt"))
}

func TestValidateSegment(t *testing.T) {
	valid := &Segment{ID: SegmentID("a.txt", 1), SourceID: "a.txt", Ordinal: 1, Content: "text"}
	assert.NoError(t, ValidateSegment(valid))

	tests := []struct {
		name    string
		segment *Segment
		errMsg  string
	}{
		{"nil", nil, "nil"},
		{"missing source", &Segment{ID: "#00000", Content: "x"}, "SourceID"},
		{"negative ordinal", &Segment{SourceID: "a", Ordinal: -1, Content: "x"}, "Ordinal"},
		{"mismatched id", &Segment{ID: "a#1", SourceID: "a", Ordinal: 1, Content: "x"}, "does not match"},
		{"empty content", &Segment{ID: SegmentID("a", 0), SourceID: "a"}, "Content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSegment(tt.segment)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
