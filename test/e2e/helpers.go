//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/cli/admin"
	"github.com/cloo-solutions/cryptoadvisor/internal/config"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
	"github.com/cloo-solutions/cryptoadvisor/internal/testutil"
)

const (
	e2eUser   = "e2e"
	e2eAPIKey = "cad_e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0e2e0"

	// refusedMarker makes the fake model answer with a content policy error.
	refusedMarker = "forbidden-topic"

	rateLimitMessages = 5
)

// E2ETestEnv is a running advisor backed by real Postgres and S3 containers
// with fake OpenAI and NewsAPI servers.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	App        *admin.App
	Ingestion  *service.IngestionService
	Logs       *test.Hook
	ServerURL  string
	DocsDir    string
	BinaryDir  string
	Model      *fakeModel
	HTTPClient *http.Client
}

var corpus = map[string]string{
	"bitcoin.md": `# Bitcoin halving

The Bitcoin halving cuts the block subsidy in half roughly every four years.
Past halvings reduced new supply and were followed by long bull markets,
although past performance does not guarantee future returns.`,
	"staking.md": `# Ethereum staking

Staking locks ETH with a validator to secure the network and earn rewards.
Liquid staking tokens keep the position tradable but add smart contract risk.`,
}

func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	t.Helper()
	ctx := context.Background()

	pgC := testutil.StartPostgres(ctx, t)
	s3C := testutil.StartRustFS(ctx, t)
	testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	model := newFakeModel()
	openaiServer := httptest.NewServer(model)
	t.Cleanup(openaiServer.Close)
	newsServer := httptest.NewServer(http.HandlerFunc(fakeNews))
	t.Cleanup(newsServer.Close)

	docsDir := t.TempDir()
	for name, body := range corpus {
		if err := os.WriteFile(filepath.Join(docsDir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("failed to write corpus: %v", err)
		}
	}

	cfg := &config.Config{
		LogLevel:             "debug",
		LogFormat:            "json",
		DatabaseURL:          pgC.ConnectionString(),
		DBMaxConns:           4,
		OpenAIAPIKey:         "sk-test",
		OpenAIBaseURL:        openaiServer.URL + "/v1",
		EmbeddingModel:       "text-embedding-3-small",
		EmbeddingDimensions:  1536,
		CompletionModel:      "gpt-4o-mini",
		Temperature:          0.2,
		MaxTokens:            800,
		NewsAPIKey:           "news-test",
		NewsBaseURL:          newsServer.URL,
		NewsEnabled:          true,
		NewsWindow:           24 * time.Hour,
		NewsLimit:            5,
		MarketBaseURL:        newsServer.URL,
		TopK:                 2,
		ChunkSize:            500,
		ChunkOverlap:         50,
		HistoryMaxMessages:   10,
		HistoryMaxChars:      6000,
		EmbeddingTimeout:     5 * time.Second,
		RetrievalTimeout:     5 * time.Second,
		NewsTimeout:          5 * time.Second,
		CompletionTimeout:    10 * time.Second,
		PersistenceTimeout:   5 * time.Second,
		RetryMaxAttempts:     2,
		RetryInitialInterval: 10 * time.Millisecond,
		RateLimitMessages:    rateLimitMessages,
		RateLimitWindow:      time.Minute,
		DocsDir:              docsDir,
		S3Endpoint:           s3C.Endpoint(),
		S3AccessKey:          testutil.RustFSAccess,
		S3SecretKey:          testutil.RustFSSecret,
		S3Bucket:             "advisor-exports",
		S3Region:             "us-east-1",
		Environment:          "test",
		InitUserName:         e2eUser,
		InitAPIKey:           e2eAPIKey,
	}

	logger, logs := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	app, err := admin.NewApp(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}
	t.Cleanup(app.Close)

	if err := app.Bootstrap(ctx); err != nil {
		t.Fatalf("failed to bootstrap: %v", err)
	}

	src, err := app.DocumentSource(docsDir, "")
	if err != nil {
		t.Fatalf("failed to open corpus: %v", err)
	}
	ingestion, err := app.Ingestion(src)
	if err != nil {
		t.Fatalf("failed to build ingestion: %v", err)
	}
	report, err := ingestion.IngestAll(ctx, service.IngestOptions{})
	if err != nil || len(report.Failed) > 0 {
		t.Fatalf("initial ingest failed: %v %+v", err, report)
	}

	limiter := middleware.NewUserRateLimiter(cfg.RateLimitMessages, cfg.RateLimitWindow)
	srv := httptest.NewServer(app.Router(limiter))
	t.Cleanup(srv.Close)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		App:        app,
		Ingestion:  ingestion,
		Logs:       logs,
		ServerURL:  srv.URL,
		DocsDir:    docsDir,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BuildCLI builds the advisor client binary into a temp dir.
func (e *E2ETestEnv) BuildCLI() {
	e.BinaryDir = e.T.TempDir()

	cmd := exec.Command("go", "build", "-o", filepath.Join(e.BinaryDir, "advisor"), "./cmd/advisor")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build advisor: %v\n%s", err, out)
	}
}

// RunAdvisor runs the CLI against the test server with an isolated config dir.
func (e *E2ETestEnv) RunAdvisor(args ...string) (string, error) {
	home := e.T.TempDir()
	cmd := exec.Command(filepath.Join(e.BinaryDir, "advisor"), args...)
	cmd.Dir = home
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+home,
		"ADVISOR_API_KEY="+e2eAPIKey,
		"ADVISOR_API_URL="+e.ServerURL,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

type APIResponse struct {
	Status int
	Header http.Header
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
	Raw    []byte
}

func (e *E2ETestEnv) Get(path string) *APIResponse {
	return e.do(http.MethodGet, path, nil)
}

func (e *E2ETestEnv) Post(path string, body any) *APIResponse {
	return e.do(http.MethodPost, path, body)
}

func (e *E2ETestEnv) Delete(path string) *APIResponse {
	return e.do(http.MethodDelete, path, nil)
}

// Ask posts one chat turn and decodes the answer when it succeeds.
func (e *E2ETestEnv) Ask(sessionID, query string) (*APIResponse, *AskData) {
	resp := e.Post("/api/sessions/"+sessionID+"/messages", map[string]string{"query": query})
	if resp.Status != http.StatusOK {
		return resp, nil
	}
	var data AskData
	resp.Decode(e.T, &data)
	return resp, &data
}

func (r *APIResponse) Decode(t *testing.T, out any) {
	t.Helper()
	if err := json.Unmarshal(r.Data, out); err != nil {
		t.Fatalf("failed to decode response data: %v (%s)", err, r.Raw)
	}
}

func (e *E2ETestEnv) do(method, path string, body any) *APIResponse {
	e.T.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			e.T.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, reqBody)
	if err != nil {
		e.T.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e2eAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response: %v", err)
	}

	out := &APIResponse{Status: resp.StatusCode, Header: resp.Header, Raw: raw}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			e.T.Fatalf("failed to parse response: %v (%s)", err, raw)
		}
	}
	return out
}

type SessionData struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Messages []struct {
		Seq     int    `json:"seq"`
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type AskData struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
	Fallback bool     `json:"fallback"`
	News     []struct {
		Headline string `json:"headline"`
	} `json:"news"`
	Messages []struct {
		Seq  int    `json:"seq"`
		Role string `json:"role"`
	} `json:"messages"`
}

// fakeModel serves the OpenAI embeddings and chat completion endpoints.
// Embeddings are bag-of-words hashes so texts sharing words are close.
type fakeModel struct {
	mu      sync.Mutex
	prompts []string
}

func newFakeModel() *fakeModel {
	return &fakeModel{}
}

func (m *fakeModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func (m *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/embeddings":
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, 0, len(req.Input))
		for i, text := range req.Input {
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": hashEmbedding(text)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "model": req.Model, "data": data})

	case "/v1/chat/completions":
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content

		m.mu.Lock()
		m.prompts = append(m.prompts, prompt)
		m.mu.Unlock()

		if strings.Contains(prompt, refusedMarker) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{
				"message": "Your request was rejected as a result of our safety system.",
				"type":    "invalid_request_error",
				"code":    "content_policy_violation",
			}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "chatcmpl-e2e",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Consider your risk tolerance and diversify."},
				"finish_reason": "stop",
			}},
		})

	default:
		http.NotFound(w, r)
	}
}

func hashEmbedding(text string) []float32 {
	vec := make([]float64, 1536)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%1536]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		if norm > 0 {
			out[i] = float32(v / norm)
		}
	}
	return out
}

// fakeNews answers NewsAPI /v2/everything with one fresh article per query.
func fakeNews(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v2/everything" {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"articles": []map[string]any{{
			"source":      map[string]string{"name": "E2E Wire"},
			"title":       fmt.Sprintf("Markets watch %s after ETF inflows", q),
			"description": "Flows picked up this week.",
			"url":         "https://news.example.com/1",
			"publishedAt": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
