package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/task-manager-be/internal/http/respond"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns uptime and storage status.
type HealthHandler struct {
	startedAt time.Time
	db        Pinger
	log       *slog.Logger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, db Pinger, log *slog.Logger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, db: db, log: log}
}

// Register wires the handler into a router.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.WarnContext(r.Context(), "health: storage not ready", "err", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}
	respond.JSON(w, code, map[string]string{
		"status": status,
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
