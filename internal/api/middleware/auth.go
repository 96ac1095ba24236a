package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

type contextKey string

const (
	UserIDKey     contextKey = "user_id"
	userHolderKey contextKey = "user_holder"
)

// userHolder lets outer middleware see the user resolved further in.
type userHolder struct {
	userID string
}

// ensureUserHolder returns r carrying a holder, reusing one set further out.
func ensureUserHolder(r *http.Request) (*http.Request, *userHolder) {
	if h, ok := r.Context().Value(userHolderKey).(*userHolder); ok {
		return r, h
	}
	h := &userHolder{}
	return r.WithContext(context.WithValue(r.Context(), userHolderKey, h)), h
}

// SessionCookie carries the API key for browser clients of the web UI.
const SessionCookie = "advisor_session"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// APIKeyAuth accepts a bearer token or, failing that, the session cookie.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, msg := tokenFromRequest(r)
			if token == "" {
				api.Error(w, http.StatusUnauthorized, msg)
				return
			}

			userID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrAPIKeyRevoked) {
					api.Error(w, http.StatusUnauthorized, "api key has been revoked")
					return
				}
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			if h, ok := r.Context().Value(userHolderKey).(*userHolder); ok {
				h.userID = userID
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, string) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return "", "invalid authorization format"
		}
		return token, ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, ""
	}
	return "", "missing authorization header"
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID returns ctx carrying userID, as the auth middleware would.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
