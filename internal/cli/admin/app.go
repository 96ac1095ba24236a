package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/cryptoadvisor/internal/api/handlers"
	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/config"
	"github.com/cloo-solutions/cryptoadvisor/internal/database"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/ingest"
	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
	"github.com/cloo-solutions/cryptoadvisor/internal/market"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
	"github.com/cloo-solutions/cryptoadvisor/internal/openai"
	"github.com/cloo-solutions/cryptoadvisor/internal/repository"
	"github.com/cloo-solutions/cryptoadvisor/internal/server"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
	"github.com/cloo-solutions/cryptoadvisor/internal/storage"
)

// App holds the wired services shared by serve and ingest.
type App struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Pool    *pgxpool.Pool
	Storage *storage.S3Client

	Users    *repository.UserRepository
	APIKeys  *repository.APIKeyRepository
	Sources  *repository.SourceRepository
	Segments *repository.SegmentRepository

	Auth      *service.AuthService
	Sessions  *service.SessionService
	Retrieval *service.RetrievalService
	Chat      *service.ChatService
	Exports   *service.ExportService
	Market    *service.MarketService

	embedder *openai.Client
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Format: cfg.LogFormat})
}

// NewApp connects to the database and object storage and builds every
// service. The caller must Close it.
func NewApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database")

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Pool:     pool,
		Users:    repository.NewUserRepository(pool),
		APIKeys:  repository.NewAPIKeyRepository(pool),
		Sources:  repository.NewSourceRepository(pool),
		Segments: repository.NewSegmentRepository(pool),
	}

	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.WithField("bucket", cfg.S3Bucket).Info("S3 bucket ready")
		app.Storage = s3Client
	}

	oaCfg := openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		CompletionModel:     cfg.CompletionModel,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
	}
	sdk := openai.NewSDKClient(oaCfg)
	app.embedder = openai.NewClientWithSDK(sdk, oaCfg)
	completer := openai.NewCompletionClient(sdk, oaCfg)

	httpClient := &http.Client{}
	newsClient := news.NewClient(news.Config{APIKey: cfg.NewsAPIKey, BaseURL: cfg.NewsBaseURL, HTTPClient: httpClient})
	marketClient := market.NewClient(market.Config{
		BaseURL:           cfg.MarketBaseURL,
		HTTPClient:        httpClient,
		RequestsPerMinute: cfg.MarketRequestsPerMinute,
	})

	uuidGen := service.DefaultUUIDGenerator{}
	sessionRepo := repository.NewSessionRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	app.Auth = service.NewAuthService(app.Users, app.APIKeys, uuidGen)
	app.Sessions = service.NewSessionService(sessionRepo, messageRepo, uuidGen)
	app.Retrieval = service.NewRetrievalService(app.embedder, app.Segments, service.RetrievalConfig{
		TopK:      cfg.TopK,
		Variants:  cfg.MultiQueryVariants,
		Embedding: app.retryPolicy(cfg.EmbeddingTimeout),
		Query:     app.retryPolicy(cfg.RetrievalTimeout),
	}, logger.WithField("component", "retrieval"))
	app.Chat = service.NewChatService(sessionRepo, messageRepo, app.Retrieval, newsClient, completer, service.ChatConfig{
		NewsEnabled:        cfg.NewsEnabled,
		NewsWindow:         cfg.NewsWindow,
		NewsLimit:          cfg.NewsLimit,
		News:               app.retryPolicy(cfg.NewsTimeout),
		CompletionTimeout:  cfg.CompletionTimeout,
		PersistenceTimeout: cfg.PersistenceTimeout,
		Prompt: service.PromptConfig{
			HistoryMaxMessages: cfg.HistoryMaxMessages,
			HistoryMaxChars:    cfg.HistoryMaxChars,
		},
	}, logger.WithField("component", "chat"))

	var uploader service.ObjectUploader
	if app.Storage != nil {
		uploader = app.Storage
	}
	app.Exports = service.NewExportService(app.Sessions, uploader)
	app.Market = service.NewMarketService(marketClient, newsClient, app.retryPolicy(cfg.NewsTimeout))

	return app, nil
}

func (a *App) retryPolicy(timeout time.Duration) service.RetryPolicy {
	return service.RetryPolicy{
		MaxAttempts:     a.Config.RetryMaxAttempts,
		InitialInterval: a.Config.RetryInitialInterval,
		Timeout:         timeout,
	}
}

// DocumentSource picks the configured corpus: the S3 prefix when set and
// storage is available, otherwise the local directory.
func (a *App) DocumentSource(dir, s3Prefix string) (ingest.Source, error) {
	if s3Prefix != "" {
		if a.Storage == nil {
			return nil, fmt.Errorf("S3 prefix %q given but S3 is not configured", s3Prefix)
		}
		return ingest.NewS3Source(a.Storage, s3Prefix), nil
	}
	return ingest.NewDirSource(dir), nil
}

func (a *App) Ingestion(src ingest.Source) (*service.IngestionService, error) {
	return service.NewIngestionService(src, a.embedder, a.Sources, repository.NewTxRunner(a.Pool), service.IngestionConfig{
		Splitter:  ingest.Splitter{MaxChars: a.Config.ChunkSize, Overlap: a.Config.ChunkOverlap},
		Model:     a.embedder.Model(),
		Embedding: a.retryPolicy(a.Config.EmbeddingTimeout),
	}, a.Logger.WithField("component", "ingest"))
}

// Router builds the HTTP handler for the API and web chat. limiter is
// shared by both so the per-user message budget is global.
func (a *App) Router(limiter *middleware.UserRateLimiter) http.Handler {
	cfg := a.Config
	return server.NewRouter(server.RouterConfig{
		AuthValidator:    a.Auth,
		RateLimiter:      limiter,
		Logger:           a.Logger,
		ChatHandler:      handlers.NewChatHandler(a.Chat),
		SessionHandler:   handlers.NewSessionHandler(a.Sessions, a.Exports),
		KnowledgeHandler: handlers.NewKnowledgeHandler(a.Retrieval, a.Sources, a.Segments),
		MarketHandler:    handlers.NewMarketHandler(a.Market, cfg.NewsWindow, cfg.NewsLimit),
		AccountHandler:   handlers.NewAccountHandler(a.Auth),
		WebHandler: handlers.NewWebHandler(a.Auth, a.Sessions, a.Chat, limiter,
			handlers.WebConfig{SecureCookies: cfg.Environment == "production"}, a.Logger),
	})
}

// Bootstrap creates the configured initial user and API key when missing.
func (a *App) Bootstrap(ctx context.Context) error {
	if a.Config.InitUserName == "" {
		return nil
	}
	user, err := a.Auth.EnsureUser(ctx, a.Config.InitUserName)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	log := a.Logger.WithFields(logrus.Fields{"user": user.Name, "user_id": user.ID})
	log.Info("bootstrap: user ready")

	token := a.Config.InitAPIKey
	if token == "" {
		return nil
	}
	if !service.IsValidAPIToken(token) {
		return fmt.Errorf("invalid ADVISOR_INIT_API_KEY format (expected 'cad_<64 hex chars>')")
	}
	if _, err := a.Auth.ValidateAPIKey(ctx, token); err == nil || errors.Is(err, domain.ErrAPIKeyRevoked) {
		log.Info("bootstrap: API key already exists")
		return nil
	}
	if err := a.Auth.CreateAPIKeyWithToken(ctx, user.ID, "bootstrap", token); err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	log.Info("bootstrap: created API key")
	return nil
}

func (a *App) Close() {
	a.Pool.Close()
}
