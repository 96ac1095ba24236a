package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

type ExportFormat string

const (
	ExportTXT ExportFormat = "txt"
	ExportPDF ExportFormat = "pdf"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case ExportTXT, ExportPDF:
		return f, nil
	case "":
		return ExportTXT, nil
	default:
		return "", domain.ErrInvalidExportFormat
	}
}

func (f ExportFormat) ContentType() string {
	if f == ExportPDF {
		return "application/pdf"
	}
	return "text/plain; charset=utf-8"
}

// Export is a rendered chat transcript.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SessionLoader returns a session with its messages, enforcing ownership.
type SessionLoader interface {
	Get(ctx context.Context, userID, sessionID string) (*domain.Session, error)
}

// ObjectUploader stores exports and hands out download links.
type ObjectUploader interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type ExportService struct {
	sessions SessionLoader
	uploader ObjectUploader
	now      func() time.Time
}

// NewExportService creates the service. uploader may be nil, in which case
// Upload reports ErrStorageUnset.
func NewExportService(sessions SessionLoader, uploader ObjectUploader) *ExportService {
	return &ExportService{sessions: sessions, uploader: uploader, now: time.Now}
}

// Export renders the session history in the requested format.
func (s *ExportService) Export(ctx context.Context, userID, sessionID string, format ExportFormat) (*Export, error) {
	session, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(session.Messages) == 0 {
		return nil, domain.ErrEmptySession
	}

	var data []byte
	switch format {
	case ExportTXT:
		data = []byte(RenderTranscript(session.Messages))
	case ExportPDF:
		data, err = renderPDF(session)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to render PDF", err)
		}
	default:
		return nil, domain.ErrInvalidExportFormat
	}

	return &Export{
		Filename:    fmt.Sprintf("chat-%s.%s", session.ID, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Upload renders the export, stores it and returns a time-limited download URL.
func (s *ExportService) Upload(ctx context.Context, userID, sessionID string, format ExportFormat) (string, error) {
	if s.uploader == nil {
		return "", domain.ErrStorageUnset
	}
	export, err := s.Export(ctx, userID, sessionID, format)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/%s/%s-%d.%s", userID, sessionID, s.now().UTC().Unix(), format)
	if err := s.uploader.PutObject(ctx, key, export.ContentType, export.Data); err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}
	url, err := s.uploader.GenerateDownloadURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to sign export URL: %w", err)
	}
	return url, nil
}

// RenderTranscript formats messages as "Role: content" blocks separated by
// blank lines.
func RenderTranscript(msgs []domain.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n\n", m.Role.Label(), m.Content)
	}
	return b.String()
}

func renderPDF(session *domain.Session) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(session.Title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// core fonts are cp1252
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(session.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, m := range session.Messages {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, tr(m.Role.Label()+":"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5.5, tr(m.Content), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
