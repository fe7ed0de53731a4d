package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/auth"
	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/schedule"
	"github.com/dukerupert/choreplan/internal/store"
	"github.com/dukerupert/choreplan/internal/websocket"
)

const (
	defaultCompletionLimit = 50
	maxCompletionLimit     = 100
)

type CompletionHandler struct {
	notifier
	completions *store.CompletionStore
	service     *schedule.Service
	now         Clock
	logger      *slog.Logger
}

func NewCompletionHandler(cs *store.CompletionStore, svc *schedule.Service, hub *websocket.Hub, now Clock, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{
		notifier:    notifier{hub: hub},
		completions: cs,
		service:     svc,
		now:         now,
		logger:      logger.With("component", "completions"),
	}
}

type completionPage struct {
	Completions []model.CompletionDetail `json:"completions"`
	Total       int                      `json:"total"`
	Limit       int                      `json:"limit"`
	Offset      int                      `json:"offset"`
}

// List pages through completions newest first. limit is clamped to 1..100
// and offset to >= 0 rather than rejected.
func (h *CompletionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ve := &apperr.ValidationError{}
	filter := store.CompletionFilter{
		ChoreID: strings.TrimSpace(q.Get("choreId")),
		UserID:  strings.TrimSpace(q.Get("userId")),
		From:    queryDate(r, "from", ve),
		To:      queryDate(r, "to", ve),
	}
	checkRange(filter.From, filter.To, ve)
	if !ve.Empty() {
		writeValidation(w, ve)
		return
	}
	filter.Limit = min(max(queryIntOr(r, "limit", defaultCompletionLimit), 1), maxCompletionLimit)
	filter.Offset = max(queryIntOr(r, "offset", 0), 0)

	rows, err := h.completions.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list completions", err)
		return
	}
	total, err := h.completions.Count(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "count completions", err)
		return
	}
	writeJSON(w, http.StatusOK, completionPage{Completions: rows, Total: total, Limit: filter.Limit, Offset: filter.Offset})
}

type createCompletionRequest struct {
	ChoreID     string  `json:"choreId" validate:"notblank"`
	ScheduleID  *string `json:"scheduleId"`
	Notes       *string `json:"notes" validate:"omitnil,max=2000"`
	CompletedAt *string `json:"completedAt" validate:"omitnil,date"`
}

func (r *createCompletionRequest) normalize() {
	r.ChoreID = strings.TrimSpace(r.ChoreID)
	r.ScheduleID = emptyToNil(r.ScheduleID)
	r.Notes = emptyToNil(r.Notes)
	r.CompletedAt = emptyToNil(r.CompletedAt)
}

// Create records a completion for the caller. A schedule that is already
// complete answers 200 with the existing record instead of 201.
func (h *CompletionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var completedAt *time.Time
	if req.CompletedAt != nil {
		t, ok := bodyDate(w, "completedAt", *req.CompletedAt)
		if !ok {
			return
		}
		completedAt = &t
	}

	c, created, err := h.service.CreateCompletion(r.Context(), schedule.CreateCompletionParams{
		ChoreID:     req.ChoreID,
		UserID:      auth.UserID(r.Context()),
		ScheduleID:  req.ScheduleID,
		Notes:       req.Notes,
		CompletedAt: completedAt,
	}, h.now())
	if err != nil {
		writeServiceError(w, h.logger, "create completion", err)
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, c)
		return
	}
	extra := map[string]any{"choreId": c.ChoreID}
	if c.ScheduleID != nil {
		extra["scheduleId"] = *c.ScheduleID
	}
	h.broadcast(r, websocket.EntityCompletion, websocket.ActionCreated, c.ID, extra)
	writeJSON(w, http.StatusCreated, c)
}

// Delete undoes the caller's completion of ?scheduleId=.
func (h *CompletionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scheduleID := strings.TrimSpace(r.URL.Query().Get("scheduleId"))
	if scheduleID == "" {
		writeValidation(w, apperr.Invalid("scheduleId", "scheduleId is required"))
		return
	}

	c, err := h.service.DeleteCompletion(r.Context(), scheduleID, auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, "delete completion", err)
		return
	}
	h.broadcast(r, websocket.EntityCompletion, websocket.ActionDeleted, c.ID, map[string]any{
		"choreId":    c.ChoreID,
		"scheduleId": scheduleID,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
