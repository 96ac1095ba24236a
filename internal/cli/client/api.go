package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/cloo-solutions/cryptoadvisor/internal/market"
)

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type Message struct {
	ID        string `json:"id"`
	Seq       int    `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

type SessionPage struct {
	Items   []Session `json:"items"`
	Cursor  string    `json:"cursor,omitempty"`
	HasMore bool      `json:"has_more"`
}

type Article struct {
	Headline    string `json:"headline"`
	Summary     string `json:"summary,omitempty"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source,omitempty"`
}

type AskResult struct {
	Answer   string    `json:"answer"`
	Sources  []string  `json:"sources"`
	News     []Article `json:"news"`
	Fallback bool      `json:"fallback"`
	Messages []Message `json:"messages"`
}

type Segment struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	Ordinal  int     `json:"ordinal"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
}

type SearchResult struct {
	Query   string    `json:"query"`
	Results []Segment `json:"results"`
}

type Source struct {
	ID           string `json:"id"`
	ContentHash  string `json:"content_hash"`
	SegmentCount int    `json:"segment_count"`
	IngestedAt   string `json:"ingested_at"`
}

type SourceList struct {
	Sources  []Source `json:"sources"`
	Segments int      `json:"segments"`
}

type NewsResult struct {
	Keywords []string  `json:"keywords"`
	Articles []Article `json:"articles"`
}

func (c *APIClient) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/api/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *APIClient) CreateSession(ctx context.Context) (*Session, error) {
	var session Session
	if err := c.post(ctx, "/api/sessions", nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *APIClient) ListSessions(ctx context.Context, cursor string, limit int) (*SessionPage, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var page SessionPage
	if err := c.get(ctx, withQuery("/api/sessions", params), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *APIClient) GetSession(ctx context.Context, id string) (*Session, error) {
	var session Session
	if err := c.get(ctx, "/api/sessions/"+url.PathEscape(id), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *APIClient) DeleteSession(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/sessions/"+url.PathEscape(id))
}

// Ask sends one chat turn. sourceIDs optionally restricts retrieval.
func (c *APIClient) Ask(ctx context.Context, sessionID, query string, sourceIDs []string) (*AskResult, error) {
	body := map[string]any{"query": query}
	if len(sourceIDs) > 0 {
		body["source_ids"] = sourceIDs
	}

	var result AskResult
	if err := c.post(ctx, "/api/sessions/"+url.PathEscape(sessionID)+"/messages", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Export downloads the transcript and returns it with the server-chosen filename.
func (c *APIClient) Export(ctx context.Context, sessionID, format string) ([]byte, string, error) {
	params := url.Values{"format": {format}}
	return c.getRaw(ctx, withQuery("/api/sessions/"+url.PathEscape(sessionID)+"/export", params))
}

// ExportLink stores the transcript server-side and returns a download URL.
func (c *APIClient) ExportLink(ctx context.Context, sessionID, format string) (string, error) {
	params := url.Values{"format": {format}}
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, withQuery("/api/sessions/"+url.PathEscape(sessionID)+"/export", params), nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *APIClient) SearchKnowledge(ctx context.Context, query string, k int, sources []string) (*SearchResult, error) {
	params := url.Values{"q": {query}}
	if k > 0 {
		params.Set("k", strconv.Itoa(k))
	}
	for _, s := range sources {
		params.Add("source", s)
	}

	var result SearchResult
	if err := c.get(ctx, withQuery("/api/knowledge/search", params), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) Sources(ctx context.Context) (*SourceList, error) {
	var list SourceList
	if err := c.get(ctx, "/api/knowledge/sources", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *APIClient) News(ctx context.Context, query string, coins []string) (*NewsResult, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	for _, coin := range coins {
		params.Add("coin", coin)
	}

	var result NewsResult
	if err := c.get(ctx, withQuery("/api/news", params), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) MarketSymbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := c.get(ctx, "/api/market", &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

func (c *APIClient) MarketReport(ctx context.Context, symbol string, days int) (*market.Report, error) {
	params := url.Values{}
	if days > 0 {
		params.Set("days", strconv.Itoa(days))
	}

	var report market.Report
	if err := c.get(ctx, withQuery("/api/market/"+url.PathEscape(symbol), params), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return fmt.Sprintf("%s?%s", path, params.Encode())
}
