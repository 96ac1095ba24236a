package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrInvalidUTF8       = errors.New("document is not valid UTF-8")
	ErrNoText            = errors.New("document contains no text")
)

// Document is a decoded source document.
type Document struct {
	ID          string
	Text        string
	ContentHash string
}

type decoder func(data []byte) (string, error)

var decoders = map[string]decoder{
	".txt": decodePlain,
	".md":  decodePlain,
	".pdf": decodePDF,
}

// Supported reports whether the loader can decode documents with this entry's extension.
func Supported(e Entry) bool {
	_, ok := decoders[e.Ext()]
	return ok
}

// Hash returns the hex sha256 of raw document bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load reads and decodes one entry. Any read or decode failure is an
// IngestionError for that entry.
func Load(ctx context.Context, src Source, e Entry) (*Document, error) {
	if !Supported(e) {
		return nil, domain.NewIngestionError(e.ID, fmt.Errorf("%w: %q", ErrUnsupportedFormat, e.Ext()))
	}

	data, err := src.Open(ctx, e.ID)
	if err != nil {
		return nil, domain.NewIngestionError(e.ID, err)
	}
	return Decode(e, data)
}

// Decode turns raw bytes into a Document using the decoder for e's extension.
func Decode(e Entry, data []byte) (*Document, error) {
	decode, ok := decoders[e.Ext()]
	if !ok {
		return nil, domain.NewIngestionError(e.ID, fmt.Errorf("%w: %q", ErrUnsupportedFormat, e.Ext()))
	}

	text, err := decode(data)
	if err != nil {
		return nil, domain.NewIngestionError(e.ID, err)
	}
	text = cleanText(text)
	if text == "" {
		return nil, domain.NewIngestionError(e.ID, ErrNoText)
	}

	return &Document{ID: e.ID, Text: text, ContentHash: Hash(data)}, nil
}

func decodePlain(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", ErrInvalidUTF8
	}
	return string(data), nil
}

func decodePDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("error creating PDF reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("could not read content of pdf: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("could not read content of pdf: %w", err)
	}
	return buf.String(), nil
}

// cleanText collapses every whitespace run, newlines included, to one space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
