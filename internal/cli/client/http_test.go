package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewAPIClientWithConfig(testAPIKey, server.URL)
	require.NoError(t, err)
	return client
}

func TestNewAPIClientWithConfig_RequiresKey(t *testing.T) {
	_, err := NewAPIClientWithConfig("", defaultAPIURL)
	assert.Error(t, err)
}

func TestNewAPIClientWithCmd_NoCredentials(t *testing.T) {
	useTempConfig(t)
	t.Chdir(t.TempDir())

	_, err := NewAPIClientWithCmd(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envAPIKey)
}

func TestAPIClient_CreateSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/sessions", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"s1","title":"","created_at":"2026-01-02T03:04:05Z"}}`))
	})

	session, err := client.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
}

func TestAPIClient_ListSessions_Query(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "c1", r.URL.Query().Get("cursor"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"data":{"items":[{"id":"s2"}],"cursor":"c2","has_more":true}}`))
	})

	page, err := client.ListSessions(context.Background(), "c1", 5)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s2", page.Items[0].ID)
	assert.True(t, page.HasMore)
	assert.Equal(t, "c2", page.Cursor)
}

func TestAPIClient_Ask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/s1/messages", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "What is BTC?", body["query"])
		assert.Equal(t, []any{"btc.pdf"}, body["source_ids"])

		w.Write([]byte(`{"data":{"answer":"Bitcoin is...","sources":["btc.pdf"],"news":[],"fallback":false,
			"messages":[{"id":"m1","seq":1,"role":"user","content":"What is BTC?"},{"id":"m2","seq":2,"role":"assistant","content":"Bitcoin is..."}]}}`))
	})

	result, err := client.Ask(context.Background(), "s1", "What is BTC?", []string{"btc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin is...", result.Answer)
	assert.Equal(t, []string{"btc.pdf"}, result.Sources)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "assistant", result.Messages[1].Role)
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"too many messages","code":"RATE_LIMITED"}`))
	})

	_, err := client.Ask(context.Background(), "s1", "hi", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "RATE_LIMITED", apiErr.Code)
	assert.Equal(t, "too many messages", apiErr.Message)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
}

func TestAPIClient_NonJSONError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := client.Me(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestAPIClient_DeleteSession_NoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/sessions/s1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.DeleteSession(context.Background(), "s1"))
}

func TestAPIClient_Export(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/s1/export", r.URL.Path)
		assert.Equal(t, "pdf", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="chat-20260102.pdf"`)
		w.Write([]byte("%PDF-1.3"))
	})

	data, filename, err := client.Export(context.Background(), "s1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "chat-20260102.pdf", filename)
	assert.Equal(t, []byte("%PDF-1.3"), data)
}

func TestAPIClient_ExportLink(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "txt", r.URL.Query().Get("format"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"url":"https://s3.example.com/exports/x.txt?sig=1"}}`))
	})

	url, err := client.ExportLink(context.Background(), "s1", "txt")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com/exports/x.txt?sig=1", url)
}

func TestAPIClient_SearchKnowledge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "staking", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("k"))
		assert.Equal(t, []string{"a.pdf", "b.md"}, r.URL.Query()["source"])
		w.Write([]byte(`{"data":{"query":"staking","results":[{"id":"g1","source_id":"a.pdf","ordinal":0,"content":"x","score":0.9}]}}`))
	})

	result, err := client.SearchKnowledge(context.Background(), "staking", 3, []string{"a.pdf", "b.md"})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.InDelta(t, 0.9, result.Results[0].Score, 1e-6)
}

func TestAPIClient_News(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"btc"}, r.URL.Query()["coin"])
		w.Write([]byte(`{"data":{"keywords":["bitcoin"],"articles":[{"headline":"BTC up","published_at":"2026-01-02T00:00:00Z"}]}}`))
	})

	result, err := client.News(context.Background(), "", []string{"btc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin"}, result.Keywords)
	require.Len(t, result.Articles, 1)
}

func TestAPIClient_MarketReport(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/market/eth", r.URL.Path)
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		w.Write([]byte(`{"data":{"symbol":"eth","quote":{"coin_id":"ethereum","currency":"usd","price":3100.5},"analysis":null}}`))
	})

	report, err := client.MarketReport(context.Background(), "eth", 30)
	require.NoError(t, err)
	assert.Equal(t, "ethereum", report.Quote.CoinID)
	assert.InDelta(t, 3100.5, report.Quote.Price, 1e-9)
}
