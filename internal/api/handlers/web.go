package handlers

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/logging"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	loginTmpl = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/login.html"))
	chatTmpl  = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/chat.html"))
)

const sessionCookieTTL = 7 * 24 * time.Hour

// MessageLimiter throttles chat messages per user.
type MessageLimiter interface {
	Reserve(userID string) (bool, time.Duration)
}

// WebHandler serves the browser chat interface. Pages are rendered on the
// server and every action is a plain form post.
type WebHandler struct {
	auth     middleware.AuthValidator
	sessions SessionService
	chat     ChatService
	limiter  MessageLimiter
	secure   bool
	logger   logrus.FieldLogger
}

type WebConfig struct {
	// SecureCookies marks the session cookie Secure; enable behind TLS.
	SecureCookies bool
}

func NewWebHandler(auth middleware.AuthValidator, sessions SessionService, chat ChatService, limiter MessageLimiter, cfg WebConfig, logger logrus.FieldLogger) *WebHandler {
	return &WebHandler{
		auth:     auth,
		sessions: sessions,
		chat:     chat,
		limiter:  limiter,
		secure:   cfg.SecureCookies,
		logger:   logging.OrDiscard(logger),
	}
}

type loginPage struct {
	Title string
	Error string
}

type chatPage struct {
	Title         string
	Sessions      []*domain.Session
	Current       *domain.Session
	Error         string
	Draft         string
	MaxQueryChars int
}

func (h *WebHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, loginTmpl, "login.html", loginPage{Title: "Sign in"})
}

func (h *WebHandler) Login(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PostFormValue("api_key"))
	if _, err := h.auth.ValidateAPIKey(r.Context(), token); err != nil {
		h.render(w, http.StatusUnauthorized, loginTmpl, "login.html", loginPage{Title: "Sign in", Error: "That API key is not valid."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// RequireLogin sends browsers without a valid session cookie to the login page.
func (h *WebHandler) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(middleware.SessionCookie)
		if err != nil || c.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		userID, err := h.auth.ValidateAPIKey(r.Context(), c.Value)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
	})
}

// Home opens the most recent session, creating the first one when needed.
func (h *WebHandler) Home(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	page, err := h.sessions.List(r.Context(), userID, "", 1)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(page.Items) > 0 {
		http.Redirect(w, r, "/chat/"+page.Items[0].ID, http.StatusSeeOther)
		return
	}
	h.NewChat(w, r)
}

func (h *WebHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/chat/"+session.ID, http.StatusSeeOther)
}

func (h *WebHandler) Chat(w http.ResponseWriter, r *http.Request) {
	h.renderChat(w, r, http.StatusOK, "", "")
}

func (h *WebHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Delete(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil && !domain.HasCode(err, domain.ErrCodeNotFound) {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID := chi.URLParam(r, "id")
	query := r.PostFormValue("query")

	if h.limiter != nil {
		if ok, wait := h.limiter.Reserve(userID); !ok {
			msg := fmt.Sprintf("You are sending messages too quickly. Please wait %d seconds.", int(math.Ceil(wait.Seconds())))
			h.renderChat(w, r, http.StatusTooManyRequests, msg, query)
			return
		}
	}

	_, err := h.chat.Ask(r.Context(), service.AskRequest{UserID: userID, SessionID: sessionID, Query: query})
	if err != nil {
		if domain.HasCode(err, domain.ErrCodeNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.WithError(err).WithField("session_id", sessionID).Warn("web ask failed")
		h.renderChat(w, r, http.StatusOK, userMessage(err), query)
		return
	}
	http.Redirect(w, r, "/chat/"+sessionID, http.StatusSeeOther)
}

func (h *WebHandler) renderChat(w http.ResponseWriter, r *http.Request, status int, errMsg, draft string) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	current, err := h.sessions.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		if domain.HasCode(err, domain.ErrCodeNotFound) {
			http.NotFound(w, r)
			return
		}
		h.fail(w, r, err)
		return
	}
	sessions, err := h.allSessions(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, status, chatTmpl, "chat.html", chatPage{
		Title:         current.Title,
		Sessions:      sessions,
		Current:       current,
		Error:         errMsg,
		Draft:         draft,
		MaxQueryChars: service.MaxQueryChars,
	})
}

// allSessions walks the session pages; the sidebar shows every session.
func (h *WebHandler) allSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	var out []*domain.Session
	cursor := ""
	for {
		page, err := h.sessions.List(ctx, userID, cursor, 100)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if !page.HasMore {
			return out, nil
		}
		cursor = page.Cursor
	}
}

func (h *WebHandler) render(w http.ResponseWriter, status int, tmpl *template.Template, name string, data any) {
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, name, data); err != nil {
		h.logger.WithError(err).Error("failed to render template")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, b.String())
}

func (h *WebHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithError(err).WithField("path", r.URL.Path).Error("web request failed")
	http.Error(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
}

func userMessage(err error) string {
	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation:
		var de *domain.DomainError
		if errors.As(err, &de) && de.Message != "" {
			return strings.ToUpper(de.Message[:1]) + de.Message[1:] + "."
		}
		return "Invalid question."
	case domain.ErrCodeEmbedding, domain.ErrCodeRetrieval, domain.ErrCodeCompletion:
		return "The advisor is unavailable right now. Please try again shortly."
	case domain.ErrCodePersistence:
		return "Your message could not be saved. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
