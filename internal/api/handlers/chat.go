package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

type ChatService interface {
	Ask(ctx context.Context, req service.AskRequest) (*service.AskResult, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type AskRequest struct {
	Query     string   `json:"query"`
	SourceIDs []string `json:"source_ids,omitempty"`
}

type AskResponse struct {
	Answer   string            `json:"answer"`
	Sources  []string          `json:"sources"`
	News     []ArticleResponse `json:"news"`
	Fallback bool              `json:"fallback"`
	Messages []MessageResponse `json:"messages"`
}

// Ask handles POST /api/sessions/{id}/messages.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := service.ValidateQuery(req.Query); err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.Ask(r.Context(), service.AskRequest{
		UserID:    userID,
		SessionID: chi.URLParam(r, "id"),
		Query:     req.Query,
		SourceIDs: req.SourceIDs,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AskResponse{
		Answer:   result.Answer,
		Sources:  result.Sources,
		News:     articlesToResponse(result.News),
		Fallback: result.Fallback,
		Messages: messagesToResponse(result.Messages),
	})
}
