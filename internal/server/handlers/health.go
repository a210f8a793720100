package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/DrakonKapysta/web-beat-api/internal/server/httpx"
	"github.com/DrakonKapysta/web-beat-api/pkg/api"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	store   Pinger
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, store Pinger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		store:   store,
		version: version,
	}
}

// Health обрабатывает GET /health
// 503 если хранилище недоступно
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Storage: "ok",
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "storage ping failed", slog.Any("error", err))
		resp.Status = "degraded"
		resp.Storage = "unavailable"
		httpx.WriteJSON(w, h.logger, resp, http.StatusServiceUnavailable)
		return
	}

	httpx.WriteJSON(w, h.logger, resp, http.StatusOK)
}
