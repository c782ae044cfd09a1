package history

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

const maxRecentLimit = 50

// Handler serves stored runs.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store) *Handler {
	return &Handler{
		store:  store,
		logger: slog.Default().With("component", "history-handler"),
	}
}

// Recent handles GET /api/v1/related-questions/history?keyword=&limit=.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'keyword' is required"})
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentLimit)
	}
	runs, err := h.store.Recent(r.Context(), keyword, limit)
	if err != nil {
		h.logger.Error("history lookup failed", "keyword", keyword, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history lookup failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"keyword": keyword,
		"runs":    runs,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
