package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/market"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
	"github.com/cloo-solutions/cryptoadvisor/internal/pagination"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

const testUserID = "user-1"

// withRoute attaches chi URL params and the authenticated user to r.
func withRoute(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = middleware.WithUserID(ctx, testUserID)
	return r.WithContext(ctx)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) Ask(ctx context.Context, req service.AskRequest) (*service.AskResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskResult), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Create(ctx context.Context, userID string) (*domain.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionService) List(ctx context.Context, userID, cursor string, limit int) (*pagination.PageResult[*domain.Session], error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Session]), args.Error(1)
}

func (m *MockSessionService) Get(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionService) Delete(ctx context.Context, userID, sessionID string) error {
	return m.Called(ctx, userID, sessionID).Error(0)
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) Export(ctx context.Context, userID, sessionID string, format service.ExportFormat) (*service.Export, error) {
	args := m.Called(ctx, userID, sessionID, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Export), args.Error(1)
}

func (m *MockExportService) Upload(ctx context.Context, userID, sessionID string, format service.ExportFormat) (string, error) {
	args := m.Called(ctx, userID, sessionID, format)
	return args.String(0), args.Error(1)
}

type MockKnowledge struct {
	mock.Mock
}

func (m *MockKnowledge) Retrieve(ctx context.Context, query string, k int, filter domain.SegmentFilter) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, query, k, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalResult), args.Error(1)
}

func (m *MockKnowledge) List(ctx context.Context) ([]*domain.Source, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Source), args.Error(1)
}

func (m *MockKnowledge) Stats(ctx context.Context) (*domain.KnowledgeStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeStats), args.Error(1)
}

type MockMarketService struct {
	mock.Mock
}

func (m *MockMarketService) Report(ctx context.Context, symbol string, days int) (*market.Report, error) {
	args := m.Called(ctx, symbol, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Report), args.Error(1)
}

func (m *MockMarketService) News(ctx context.Context, q news.Query) ([]domain.Article, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Article), args.Error(1)
}

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountService) CreateAPIKey(ctx context.Context, userID, name string) (string, error) {
	args := m.Called(ctx, userID, name)
	return args.String(0), args.Error(1)
}

func (m *MockAccountService) ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

func (m *MockAccountService) RevokeAPIKey(ctx context.Context, keyID string) error {
	return m.Called(ctx, keyID).Error(0)
}

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

type stubLimiter struct {
	allow bool
	wait  time.Duration
}

func (l stubLimiter) Reserve(string) (bool, time.Duration) { return l.allow, l.wait }
