package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "ADVISOR"

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	CompletionModel     string  `envconfig:"COMPLETION_MODEL" default:"gpt-4o-mini"`
	Temperature         float32 `envconfig:"TEMPERATURE" default:"0.2"`
	MaxTokens           int     `envconfig:"MAX_TOKENS" default:"800"`

	NewsAPIKey  string        `envconfig:"NEWS_API_KEY" required:"true"`
	NewsBaseURL string        `envconfig:"NEWS_BASE_URL" default:"https://newsapi.org"`
	NewsEnabled bool          `envconfig:"NEWS_ENABLED" default:"true"`
	NewsWindow  time.Duration `envconfig:"NEWS_WINDOW" default:"24h"`
	NewsLimit   int           `envconfig:"NEWS_LIMIT" default:"5"`

	MarketBaseURL           string `envconfig:"MARKET_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	MarketRequestsPerMinute int    `envconfig:"MARKET_REQUESTS_PER_MINUTE" default:"30"`

	TopK               int `envconfig:"TOP_K" default:"3"`
	ChunkSize          int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap       int `envconfig:"CHUNK_OVERLAP" default:"50"`
	MultiQueryVariants int `envconfig:"MULTI_QUERY_VARIANTS" default:"0"`

	HistoryMaxMessages int `envconfig:"HISTORY_MAX_MESSAGES" default:"10"`
	HistoryMaxChars    int `envconfig:"HISTORY_MAX_CHARS" default:"6000"`

	EmbeddingTimeout   time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"15s"`
	RetrievalTimeout   time.Duration `envconfig:"RETRIEVAL_TIMEOUT" default:"10s"`
	NewsTimeout        time.Duration `envconfig:"NEWS_TIMEOUT" default:"8s"`
	CompletionTimeout  time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"60s"`
	PersistenceTimeout time.Duration `envconfig:"PERSISTENCE_TIMEOUT" default:"5s"`

	RetryMaxAttempts     int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialInterval time.Duration `envconfig:"RETRY_INITIAL_INTERVAL" default:"200ms"`

	RateLimitMessages int           `envconfig:"RATE_LIMIT_MESSAGES" default:"5"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`

	DocsDir          string        `envconfig:"DOCS_DIR" default:"./raw_docs"`
	DocsS3Prefix     string        `envconfig:"DOCS_S3_PREFIX"`
	ReingestInterval time.Duration `envconfig:"REINGEST_INTERVAL" default:"0"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"advisor-docs"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Bootstrap: create an initial user and API key on startup
	InitUserName string `envconfig:"INIT_USER_NAME"`
	InitAPIKey   string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DatabaseConfig is the subset of Config used by admin commands that only
// touch the database.
type DatabaseConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"4"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"0"`
}

func LoadDatabase() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	var cfg DatabaseConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	for key, value := range map[string]string{
		"DATABASE_URL":   c.DatabaseURL,
		"OPENAI_API_KEY": c.OpenAIAPIKey,
		"NEWS_API_KEY":   c.NewsAPIKey,
	} {
		if value == "" {
			return fmt.Errorf("required key %s_%s is empty", envPrefix, key)
		}
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("TOP_K must be positive, got %d", c.TopK)
	}
	if c.RateLimitMessages <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MESSAGES and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) HasReingest() bool {
	return c.ReingestInterval > 0
}
