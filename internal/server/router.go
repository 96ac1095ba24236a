package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/api/handlers"
	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	RateLimiter      *middleware.UserRateLimiter
	Logger           logrus.FieldLogger
	MaxBodyBytes     int64
	ChatHandler      *handlers.ChatHandler
	SessionHandler   *handlers.SessionHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	MarketHandler    *handlers.MarketHandler
	AccountHandler   *handlers.AccountHandler
	WebHandler       *handlers.WebHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = middleware.DefaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Get("/me", cfg.AccountHandler.Me)
		r.Route("/keys", func(r chi.Router) {
			r.Get("/", cfg.AccountHandler.ListKeys)
			r.Post("/", cfg.AccountHandler.CreateKey)
			r.Delete("/{id}", cfg.AccountHandler.RevokeKey)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.SessionHandler.Create)
			r.Get("/", cfg.SessionHandler.List)
			r.Get("/{id}", cfg.SessionHandler.Get)
			r.Delete("/{id}", cfg.SessionHandler.Delete)
			r.Get("/{id}/export", cfg.SessionHandler.Export)
			r.Post("/{id}/export", cfg.SessionHandler.ExportLink)
			r.With(rateLimit(cfg.RateLimiter)).Post("/{id}/messages", cfg.ChatHandler.Ask)
		})

		r.Get("/knowledge/sources", cfg.KnowledgeHandler.Sources)
		r.Get("/knowledge/search", cfg.KnowledgeHandler.Search)

		r.Get("/market", cfg.MarketHandler.Symbols)
		r.Get("/market/{symbol}", cfg.MarketHandler.Report)
		r.Get("/news", cfg.MarketHandler.News)
	})

	if web := cfg.WebHandler; web != nil {
		r.Get("/login", web.LoginForm)
		r.Post("/login", web.Login)
		r.Post("/logout", web.Logout)

		r.Group(func(r chi.Router) {
			r.Use(web.RequireLogin)
			r.Get("/", web.Home)
			r.Post("/chat/new", web.NewChat)
			r.Get("/chat/{id}", web.Chat)
			r.Post("/chat/{id}/delete", web.DeleteChat)
			r.Post("/chat/{id}/ask", web.Ask)
		})
	}

	return r
}

func rateLimit(limiter *middleware.UserRateLimiter) func(http.Handler) http.Handler {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(limiter)
}
