package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voyager-erp/voyager-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
	cache   *Cache
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/movements", h.listMovements)
	r.Get("/reconciliation", h.reconciliation)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{
		ItemCode:      r.URL.Query().Get("item_code"),
		InvoiceNumber: r.URL.Query().Get("invoice_number"),
		Direction:     Direction(r.URL.Query().Get("direction")),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = t
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = t
		}
	}

	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) reconciliation(w http.ResponseWriter, r *http.Request) {
	if rows, ok := h.cache.GetReconciliation(r.Context()); ok {
		httpx.JSON(w, http.StatusOK, map[string]any{"items": rows, "cached": true})
		return
	}

	rows, err := h.service.Reconcile(r.Context())
	if err != nil {
		h.logger.Error("reconcile ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.cache.SetReconciliation(r.Context(), rows)
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows, "cached": false})
}
