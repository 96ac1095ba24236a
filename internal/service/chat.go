package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
	"github.com/cloo-solutions/cryptoadvisor/internal/openai"
	"github.com/cloo-solutions/cryptoadvisor/internal/telemetry"
)

// MaxQueryChars caps the length of a user question.
const MaxQueryChars = 4000

// FallbackAnswer is shown when the model provider refuses a prompt.
const FallbackAnswer = "I'm sorry, but I can't help with that request. I can answer questions about cryptocurrencies, blockchain technology and digital asset markets."

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error)
}

type NewsFetcher interface {
	Fetch(ctx context.Context, q news.Query) ([]domain.Article, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string, params openai.CompletionParams) (string, error)
}

type ChatConfig struct {
	NewsEnabled        bool
	NewsWindow         time.Duration
	NewsLimit          int
	News               RetryPolicy
	CompletionTimeout  time.Duration
	PersistenceTimeout time.Duration
	Completion         openai.CompletionParams
	Prompt             PromptConfig
}

// ChatService runs one question through retrieval, news, prompt assembly,
// completion and persistence.
type ChatService struct {
	sessions  SessionRepository
	messages  MessageRepository
	retriever Retriever
	news      NewsFetcher
	completer Completer
	assembler *PromptAssembler
	cfg       ChatConfig
	logger    logrus.FieldLogger
}

func NewChatService(
	sessions SessionRepository,
	messages MessageRepository,
	retriever Retriever,
	newsFetcher NewsFetcher,
	completer Completer,
	cfg ChatConfig,
	logger logrus.FieldLogger,
) *ChatService {
	return &ChatService{
		sessions:  sessions,
		messages:  messages,
		retriever: retriever,
		news:      newsFetcher,
		completer: completer,
		assembler: NewPromptAssembler(cfg.Prompt),
		cfg:       cfg,
		logger:    logging.OrDiscard(logger),
	}
}

type AskRequest struct {
	UserID    string
	SessionID string
	Query     string
	SourceIDs []string
}

type AskResult struct {
	Answer   string
	Sources  []string
	News     []domain.Article
	Fallback bool
	Messages []domain.ChatMessage
}

// ValidateQuery trims query and checks it is non-empty and within MaxQueryChars.
func ValidateQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", domain.ErrEmptyQuery
	}
	if utf8.RuneCountInString(query) > MaxQueryChars {
		return "", domain.ErrQueryTooLong
	}
	return query, nil
}

// Ask answers query in the session. The user message and the answer are
// persisted together only when the whole turn succeeds.
func (s *ChatService) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat.ask", telemetry.SpanAttributes{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Operation: "ask",
	})
	defer span.End()

	result, err := s.ask(ctx, req)
	if err != nil && !domain.HasCode(err, domain.ErrCodeValidation) && !domain.HasCode(err, domain.ErrCodeNotFound) {
		span.SetError(err)
	}
	return result, err
}

func (s *ChatService) ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	query, err := ValidateQuery(req.Query)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, req.UserID, req.SessionID); err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"user_id": req.UserID, "session_id": req.SessionID})

	history, err := s.messages.Load(ctx, req.SessionID)
	if err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	var knowledge []domain.RetrievalResult
	var articles []domain.Article
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		knowledge, err = s.retriever.Retrieve(gctx, query, 0, domain.SegmentFilter{SourceIDs: req.SourceIDs})
		return err
	})
	g.Go(func() error {
		articles = s.fetchNews(gctx, query, log)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := s.assembler.Assemble(PromptInput{
		Query:     query,
		Knowledge: knowledge,
		News:      articles,
		History:   history,
	})

	answer, err := s.complete(ctx, prompt)
	if errors.Is(err, openai.ErrContentPolicy) {
		log.WithError(err).Warn("completion refused by content policy")
		return &AskResult{Answer: FallbackAnswer, Fallback: true, News: articles, Sources: []string{}}, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewCompletionError(err)
	}

	sources := attributedSources(knowledge)
	answer = withAttribution(answer, sources)

	// A caller that went away gets nothing written on its behalf.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userMsg := domain.NewChatMessage(domain.RoleUser, query)
	assistantMsg := domain.NewChatMessage(domain.RoleAssistant, answer)
	persistCtx, cancel := withOptionalTimeout(ctx, s.cfg.PersistenceTimeout)
	defer cancel()
	if err := s.messages.AppendTurn(persistCtx, req.SessionID, &userMsg, &assistantMsg); err != nil {
		return nil, domain.NewPersistenceError(err)
	}

	log.WithFields(logrus.Fields{
		"segments": len(knowledge),
		"articles": len(articles),
	}).Info("question answered")

	return &AskResult{
		Answer:   answer,
		Sources:  sources,
		News:     articles,
		Messages: []domain.ChatMessage{userMsg, assistantMsg},
	}, nil
}

func (s *ChatService) checkOwner(ctx context.Context, userID, sessionID string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if domain.HasCode(err, domain.ErrCodeNotFound) {
			return domain.ErrSessionNotFound
		}
		return domain.NewPersistenceError(err)
	}
	if session.UserID != userID {
		return domain.ErrSessionNotFound
	}
	return nil
}

// fetchNews never fails the turn: errors are logged and yield no articles.
func (s *ChatService) fetchNews(ctx context.Context, query string, log logrus.FieldLogger) []domain.Article {
	if !s.cfg.NewsEnabled || s.news == nil {
		return nil
	}
	keywords := news.ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil
	}

	var articles []domain.Article
	err := s.cfg.News.Do(ctx, func(ctx context.Context) error {
		var err error
		articles, err = s.news.Fetch(ctx, news.Query{
			Keywords: keywords,
			Window:   s.cfg.NewsWindow,
			Limit:    s.cfg.NewsLimit,
		})
		return err
	})
	if err != nil {
		log.WithError(domain.NewNewsFetchError(err)).Warn("news unavailable, continuing without it")
		return nil
	}
	return articles
}

func (s *ChatService) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withOptionalTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()
	return s.completer.Complete(ctx, prompt, s.cfg.Completion)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// attributedSources lists distinct source ids in rank order.
func attributedSources(results []domain.RetrievalResult) []string {
	seen := make(map[string]struct{}, len(results))
	sources := []string{}
	for _, r := range results {
		if _, ok := seen[r.Segment.SourceID]; ok {
			continue
		}
		seen[r.Segment.SourceID] = struct{}{}
		sources = append(sources, r.Segment.SourceID)
	}
	return sources
}

func withAttribution(answer string, sources []string) string {
	if len(sources) == 0 {
		return answer
	}
	return answer + "\n\n**Sources:** " + strings.Join(sources, ", ")
}
