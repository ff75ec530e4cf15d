package asset

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/assetops/asset-management/internal/auth"
	"github.com/assetops/asset-management/internal/transport"
	"github.com/assetops/asset-management/pkg/logger"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateAsset(ctx context.Context, principal *auth.Principal, dto CreateAssetDTO) (*Asset, error)
	GetAsset(ctx context.Context, id int64) (*Asset, error)
	ListAssets(ctx context.Context, filter ListFilter) ([]*Asset, error)
	NextTag(ctx context.Context, principal *auth.Principal, category string) (*NextTagResponse, error)
	UpdateStatus(ctx context.Context, principal *auth.Principal, id int64, dto UpdateStatusDTO) (*Asset, error)
	DeleteAsset(ctx context.Context, principal *auth.Principal, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// CreateAsset handles POST /assets
func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var dto CreateAssetDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.CreateAsset(r.Context(), principal, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, a)
}

// GetAsset handles GET /assets/{id}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	a, err := h.Service.GetAsset(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, a)
}

// ListAssets handles GET /assets
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status:   r.URL.Query().Get("status"),
		Category: r.URL.Query().Get("category"),
		Limit:    20,
		Offset:   0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	assets, err := h.Service.ListAssets(r.Context(), filter)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"assets": assets,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// NextTag handles GET /assets/next-tag?category=
func (h *Handler) NextTag(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	resp, err := h.Service.NextTag(r.Context(), principal, r.URL.Query().Get("category"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /assets/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	var dto UpdateStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.UpdateStatus(r.Context(), principal, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, a)
}

// DeleteAsset handles DELETE /assets/{id}
func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	if err := h.Service.DeleteAsset(r.Context(), principal, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}
