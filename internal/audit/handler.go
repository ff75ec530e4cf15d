package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/assetops/asset-management/internal/transport"
	"github.com/assetops/asset-management/pkg/logger"
)

type ServiceAPI interface {
	History(ctx context.Context, entityType string, entityID int64, limit, offset int) ([]*Entry, error)
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

// GetHistory handles GET /audit?entity_type=&entity_id=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	if entityType == "" {
		h.WriteError(w, http.StatusBadRequest, "entity_type is required")
		return
	}

	entityIDStr := r.URL.Query().Get("entity_id")
	entityID, err := strconv.ParseInt(entityIDStr, 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid entity_id")
		return
	}

	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	entries, err := h.Service.History(r.Context(), entityType, entityID, limit, offset)
	if err != nil {
		h.Logger.Error("GetHistory: service error", "error", err, "entity_type", entityType, "entity_id", entityID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}
