package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/auth"
	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/cascade"
	"github.com/dukerupert/choreplan/internal/chore"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/schedule"
	"github.com/dukerupert/choreplan/internal/store"
	"github.com/dukerupert/choreplan/internal/websocket"
)

const (
	defaultScheduleLimit = 100
	maxScheduleLimit     = 500
)

type ScheduleHandler struct {
	notifier
	schedules *store.ScheduleStore
	service   *schedule.Service
	engine    *cascade.Engine
	views     *chore.Service
	now       Clock
	logger    *slog.Logger
}

func NewScheduleHandler(ss *store.ScheduleStore, svc *schedule.Service, engine *cascade.Engine, views *chore.Service, hub *websocket.Hub, now Clock, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		notifier:  notifier{hub: hub},
		schedules: ss,
		service:   svc,
		engine:    engine,
		views:     views,
		now:       now,
		logger:    logger.With("component", "schedules"),
	}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ve := &apperr.ValidationError{}
	filter := store.ScheduleFilter{
		From:   queryDate(r, "from", ve),
		To:     queryDate(r, "to", ve),
		UserID: strings.TrimSpace(q.Get("userId")),
		Limit:  queryInt(r, "limit", defaultScheduleLimit, ve),
	}
	checkRange(filter.From, filter.To, ve)
	if raw := q.Get("slotType"); raw != "" {
		tier, err := frequency.Parse(raw)
		if err != nil {
			ve.Add("slotType", "Must be one of: "+strings.Join(frequency.Names(), ", "))
		}
		filter.SlotType = tier
	}
	if raw := q.Get("includeHidden"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			ve.Add("includeHidden", "Must be true or false")
		}
		filter.IncludeHidden = b
	}
	if filter.Limit < 1 || filter.Limit > maxScheduleLimit {
		ve.Add("limit", "limit must be an integer between 1 and 500")
	}
	if !ve.Empty() {
		writeValidation(w, ve)
		return
	}

	rows, err := h.schedules.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

type createScheduleRequest struct {
	ScheduledFor string `json:"scheduledFor" validate:"required,date"`
	SlotType     string `json:"slotType" validate:"required,tier"`
	ChoreID      string `json:"choreId"`
	Suggested    bool   `json:"suggested"`
	// UserID steers a suggestion toward that user's chores.
	UserID string `json:"userId"`
}

func (r *createScheduleRequest) normalize() {
	r.ScheduledFor = strings.TrimSpace(r.ScheduledFor)
	r.ChoreID = strings.TrimSpace(r.ChoreID)
	r.UserID = strings.TrimSpace(r.UserID)
}

type scheduleResponse struct {
	Data       *model.Schedule     `json:"data"`
	Suggestion *cascade.Suggestion `json:"suggestion,omitempty"`
}

// Create places a chore on a day. Without a choreId the cascade picks one
// and the row is marked suggested.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scheduledFor, ok := bodyDate(w, "scheduledFor", req.ScheduledFor)
	if !ok {
		return
	}
	slot, ok := bodyTier(w, "slotType", req.SlotType)
	if !ok {
		return
	}
	day := calendar.StartOfDay(scheduledFor)

	var (
		resp    scheduleResponse
		created bool
		err     error
	)
	if req.ChoreID == "" {
		resp.Data, resp.Suggestion, created, err = h.service.CreateSuggestedSchedule(r.Context(), day, slot, req.UserID, h.now())
	} else {
		resp.Data, created, err = h.service.CreateSchedule(r.Context(), schedule.CreateScheduleParams{
			ChoreID:      req.ChoreID,
			ScheduledFor: day,
			SlotType:     slot,
			Suggested:    req.Suggested,
		})
	}
	if err != nil {
		writeServiceError(w, h.logger, "create schedule", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.broadcast(r, websocket.EntitySchedule, websocket.ActionCreated, resp.Data.ID, map[string]any{
			"choreId":      resp.Data.ChoreID,
			"scheduledFor": calendar.DayKey(resp.Data.ScheduledFor),
		})
	}
	writeJSON(w, status, resp)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.DeleteSchedule(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "delete schedule", err)
		return
	}
	h.broadcast(r, websocket.EntitySchedule, websocket.ActionDeleted, id, nil)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ScheduleHandler) Hide(w http.ResponseWriter, r *http.Request) {
	sched, err := h.service.HideSchedule(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "hide schedule", err)
		return
	}
	h.broadcast(r, websocket.EntitySchedule, websocket.ActionHidden, sched.ID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"data": sched})
}

type suggestRequest struct {
	SlotType string `json:"slotType" validate:"required,tier"`
	UserID   string `json:"userId"`
}

func (r *suggestRequest) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

func (h *ScheduleHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slot, ok := bodyTier(w, "slotType", req.SlotType)
	if !ok {
		return
	}

	suggestion, err := h.engine.Suggest(r.Context(), slot, req.UserID, h.now())
	if err != nil {
		writeServiceError(w, h.logger, "suggest chore", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": suggestion})
}

type ensureRequest struct {
	Through *string `json:"through" validate:"omitnil,date"`
}

// Ensure runs the daily auto-scheduler on demand.
func (h *ScheduleHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	var req ensureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var through *time.Time
	if req.Through != nil {
		t, ok := bodyDate(w, "through", *req.Through)
		if !ok {
			return
		}
		through = &t
	}

	created, err := h.service.EnsureDaily(r.Context(), h.now(), through)
	if err != nil {
		writeServiceError(w, h.logger, "ensure daily schedules", err)
		return
	}
	if created > 0 {
		h.broadcast(r, websocket.EntitySchedule, websocket.ActionCreated, "", map[string]any{"count": created})
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (h *ScheduleHandler) Pace(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.engine.CheckPace(r.Context(), h.now())
	if err != nil {
		writeServiceError(w, h.logger, "check pace", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": warnings})
}

// Month serves the scheduling view for ?month=YYYY-MM, defaulting to the
// current month.
func (h *ScheduleHandler) Month(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	year, month := now.UTC().Year(), now.UTC().Month()
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		var err error
		year, month, err = calendar.ParseMonth(raw)
		if err != nil {
			writeValidation(w, apperr.Invalid("month", "Expected YYYY-MM"))
			return
		}
	}

	view, err := h.views.Planner(r.Context(), auth.UserID(r.Context()), year, month, now)
	if err != nil {
		writeServiceError(w, h.logger, "load month", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
