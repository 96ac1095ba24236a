package handlers

import (
	"time"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

const timeLayout = time.RFC3339Nano

type MessageResponse struct {
	ID        string `json:"id"`
	Seq       int    `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type SessionResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Messages  []MessageResponse `json:"messages,omitempty"`
}

type ArticleResponse struct {
	Headline    string `json:"headline"`
	Summary     string `json:"summary,omitempty"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source,omitempty"`
}

type SegmentResponse struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	Ordinal  int     `json:"ordinal"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
}

func messageToResponse(m domain.ChatMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Seq:       m.Seq,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(timeLayout),
	}
}

func messagesToResponse(msgs []domain.ChatMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToResponse(m))
	}
	return out
}

func sessionToResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: s.UpdatedAt.UTC().Format(timeLayout),
		Messages:  messagesToResponse(s.Messages),
	}
}

func articlesToResponse(articles []domain.Article) []ArticleResponse {
	out := make([]ArticleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, ArticleResponse{
			Headline:    a.Headline,
			Summary:     a.Summary,
			PublishedAt: a.PublishedAt.UTC().Format(time.RFC3339),
			URL:         a.URL,
			Source:      a.SourceName,
		})
	}
	return out
}

func segmentsToResponse(results []domain.RetrievalResult) []SegmentResponse {
	out := make([]SegmentResponse, 0, len(results))
	for _, r := range results {
		out = append(out, SegmentResponse{
			ID:       r.Segment.ID,
			SourceID: r.Segment.SourceID,
			Ordinal:  r.Segment.Ordinal,
			Content:  r.Segment.Content,
			Score:    r.Score,
		})
	}
	return out
}
