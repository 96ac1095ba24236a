// Package news fetches recent cryptocurrency headlines from NewsAPI.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

const (
	DefaultBaseURL = "https://newsapi.org"
	DefaultWindow  = 24 * time.Hour
	DefaultLimit   = 5

	// maxPageSize is the largest page NewsAPI accepts.
	maxPageSize = 100
)

var ErrNoKeywords = errors.New("at least one keyword is required")

// Query describes one news lookup.
type Query struct {
	Keywords []string
	Window   time.Duration
	Limit    int
}

type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the NewsAPI /v2/everything endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		now:        time.Now,
	}
}

type articleSource struct {
	Name string `json:"name"`
}

type article struct {
	Source      articleSource `json:"source"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	URL         string        `json:"url"`
	PublishedAt time.Time     `json:"publishedAt"`
}

type everythingResponse struct {
	Status   string    `json:"status"`
	Code     string    `json:"code,omitempty"`
	Message  string    `json:"message,omitempty"`
	Articles []article `json:"articles"`
}

// APIError is a non-ok answer from NewsAPI.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("news API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// Fetch returns articles published inside the window, most recent first,
// capped at the limit.
func (c *Client) Fetch(ctx context.Context, q Query) ([]domain.Article, error) {
	keywords := normalizeKeywords(q.Keywords)
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	window := q.Window
	if window <= 0 {
		window = DefaultWindow
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	now := c.now().UTC()
	from := now.Add(-window)

	params := url.Values{}
	params.Set("q", strings.Join(keywords, " OR "))
	params.Set("from", from.Format(time.RFC3339))
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("pageSize", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed everythingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode >= 400 || parsed.Status != "ok" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: parsed.Code, Message: parsed.Message}
	}

	articles := make([]domain.Article, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		if a.Title == "" || a.PublishedAt.IsZero() {
			continue
		}
		published := a.PublishedAt.UTC()
		if published.Before(from) || published.After(now) {
			continue
		}
		articles = append(articles, domain.Article{
			Headline:    strings.TrimSpace(a.Title),
			Summary:     strings.TrimSpace(a.Description),
			PublishedAt: published,
			URL:         a.URL,
			SourceName:  a.Source.Name,
		})
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
	if len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
