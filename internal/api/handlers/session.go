package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/api/middleware"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/pagination"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

type SessionService interface {
	Create(ctx context.Context, userID string) (*domain.Session, error)
	List(ctx context.Context, userID, cursor string, limit int) (*pagination.PageResult[*domain.Session], error)
	Get(ctx context.Context, userID, sessionID string) (*domain.Session, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

type ExportService interface {
	Export(ctx context.Context, userID, sessionID string, format service.ExportFormat) (*service.Export, error)
	Upload(ctx context.Context, userID, sessionID string, format service.ExportFormat) (string, error)
}

type SessionHandler struct {
	sessions SessionService
	exports  ExportService
}

func NewSessionHandler(sessions SessionService, exports ExportService) *SessionHandler {
	return &SessionHandler{sessions: sessions, exports: exports}
}

type SessionListResponse struct {
	Items   []SessionResponse `json:"items"`
	Cursor  string            `json:"cursor,omitempty"`
	HasMore bool              `json:"has_more"`
}

type ExportURLResponse struct {
	URL string `json:"url"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, sessionToResponse(session))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.sessions.List(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]SessionResponse, 0, len(page.Items))
	for _, s := range page.Items {
		items = append(items, sessionToResponse(s))
	}
	api.Success(w, http.StatusOK, SessionListResponse{Items: items, Cursor: page.Cursor, HasMore: page.HasMore})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessions.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	resp := sessionToResponse(session)
	if resp.Messages == nil {
		resp.Messages = []MessageResponse{}
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessions.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/sessions/{id}/export?format=txt|pdf and streams
// the transcript as an attachment.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	format, err := service.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	export, err := h.exports.Export(r.Context(), userID, chi.URLParam(r, "id"), format)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Data)
}

// ExportLink handles POST /api/sessions/{id}/export and returns a
// presigned download URL for the stored export.
func (h *SessionHandler) ExportLink(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	format, err := service.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	url, err := h.exports.Upload(r.Context(), userID, chi.URLParam(r, "id"), format)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, ExportURLResponse{URL: url})
}
