package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_Split(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 3000; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	text := sb.String()

	segments, err := Splitter{MaxChars: 500, Overlap: 50}.Split("guide.txt", text)
	require.NoError(t, err)
	require.Len(t, segments, 7)

	for i, seg := range segments {
		start := i * 450
		end := min(start+500, 3000)
		assert.Equal(t, text[start:end], seg.Content, "segment %d", i)
		assert.Equal(t, i, seg.Ordinal)
		assert.Equal(t, "guide.txt", seg.SourceID)
		if i == 0 {
			assert.Equal(t, 0, seg.OverlapPrev)
			assert.Equal(t, "guide.txt#00000", seg.ID)
			continue
		}
		assert.Equal(t, 50, seg.OverlapPrev)
		prev := segments[i-1].Content
		assert.Equal(t, prev[len(prev)-50:], seg.Content[:50])
	}
	assert.Equal(t, "guide.txt#00006", segments[6].ID)
	assert.Len(t, segments[6].Content, 300)
}

func TestSplitter_ShortText(t *testing.T) {
	segments, err := Splitter{MaxChars: 500, Overlap: 50}.Split("a.md", "short text")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "short text", segments[0].Content)
}

func TestSplitter_ExactWindow(t *testing.T) {
	segments, err := Splitter{MaxChars: 4, Overlap: 1}.Split("a", "abcd")
	require.NoError(t, err)
	assert.Len(t, segments, 1)
}

func TestSplitter_Empty(t *testing.T) {
	segments, err := Splitter{MaxChars: 10, Overlap: 2}.Split("a", "")
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSplitter_CountsRunes(t *testing.T) {
	segments, err := Splitter{MaxChars: 3, Overlap: 1}.Split("a", "₿₿₿ΞΞ")
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "₿₿₿", segments[0].Content)
	assert.Equal(t, "₿ΞΞ", segments[1].Content)
}

func TestNewSplitter_Validation(t *testing.T) {
	_, err := NewSplitter(0, 0)
	assert.Error(t, err)
	_, err = NewSplitter(100, 100)
	assert.Error(t, err)
	_, err = NewSplitter(100, -1)
	assert.Error(t, err)
	s, err := NewSplitter(100, 10)
	require.NoError(t, err)
	assert.Equal(t, Splitter{MaxChars: 100, Overlap: 10}, s)
}
