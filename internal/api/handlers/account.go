package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
)

type AccountService interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateAPIKey(ctx context.Context, userID, name string) (string, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string) error
}

type AccountHandler struct {
	svc AccountService
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

type APIKeyResponse struct {
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name"`
	Token     string  `json:"token,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	RevokedAt *string `json:"revoked_at,omitempty"`
}

// Me handles GET /api/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		CreatedAt: user.CreatedAt.UTC().Format(timeLayout),
	})
}

func (h *AccountHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	token, err := h.svc.CreateAPIKey(r.Context(), middleware.GetUserID(r.Context()), req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, APIKeyResponse{Name: req.Name, Token: token})
}

func (h *AccountHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.ListAPIKeys(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		resp := APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt.UTC().Format(timeLayout)}
		if k.RevokedAt != nil {
			revoked := k.RevokedAt.UTC().Format(timeLayout)
			resp.RevokedAt = &revoked
		}
		out = append(out, resp)
	}
	api.Success(w, http.StatusOK, out)
}

// RevokeKey handles DELETE /api/keys/{id}. Only the caller's own keys can
// be revoked; other ids look missing.
func (h *AccountHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "id")
	keys, err := h.svc.ListAPIKeys(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	owned := false
	for _, k := range keys {
		if k.ID == keyID {
			owned = true
			break
		}
	}
	if !owned {
		api.HandleError(w, domain.ErrAPIKeyNotFound)
		return
	}

	if err := h.svc.RevokeAPIKey(r.Context(), keyID); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
