package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreplan/internal/auth"
	"github.com/dukerupert/choreplan/internal/chore"
)

type DashboardHandler struct {
	views  *chore.Service
	now    Clock
	logger *slog.Logger
}

func NewDashboardHandler(views *chore.Service, now Clock, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{views: views, now: now, logger: logger.With("component", "dashboard")}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.views.Dashboard(r.Context(), auth.UserID(r.Context()), h.now())
	if err != nil {
		writeServiceError(w, h.logger, "load dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
