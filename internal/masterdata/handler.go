package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Handler serves master-data lists to authenticated callers.
type Handler struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers master-data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	kind := Kind(chi.URLParam(r, "kind"))
	values, err := h.repo.List(r.Context(), kind)
	if err != nil {
		h.logger.Error("list master data", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Master data retrieved successfully", values)
}
