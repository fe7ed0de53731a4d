package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/chore"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/store"
	"github.com/dukerupert/choreplan/internal/websocket"
)

const maxDescription = 2000

type ChoreHandler struct {
	notifier
	chores *store.ChoreStore
	users  *store.UserStore
	views  *chore.Service
	logger *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, us *store.UserStore, views *chore.Service, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{
		notifier: notifier{hub: hub},
		chores:   cs,
		users:    us,
		views:    views,
		logger:   logger.With("component", "chores"),
	}
}

type createChoreRequest struct {
	Title       string   `json:"title" validate:"notblank,max=200"`
	Frequency   string   `json:"frequency" validate:"required,tier"`
	Description *string  `json:"description" validate:"omitnil,max=2000"`
	AssigneeIDs []string `json:"assigneeIds" validate:"omitempty,max=50,dive,notblank"`
}

func (r *createChoreRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = emptyToNil(r.Description)
}

// optionalString distinguishes an absent field from an explicit null.
type optionalString struct {
	Set   bool
	Value *string
}

func (o *optionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

type updateChoreRequest struct {
	Title       *string        `json:"title" validate:"omitnil,notblank,max=200"`
	Frequency   *string        `json:"frequency" validate:"omitnil,tier"`
	Description optionalString `json:"description" validate:"-"`
	AssigneeIDs *[]string      `json:"assigneeIds" validate:"omitnil,max=50,dive,notblank"`
}

func (r *updateChoreRequest) normalize() {
	r.Title = trimmed(r.Title)
	r.Description.Value = emptyToNil(r.Description.Value)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter store.ChoreFilter
	if raw := r.URL.Query().Get("frequency"); raw != "" {
		tier, err := frequency.Parse(raw)
		if err != nil {
			writeValidation(w, apperr.Invalid("frequency", "Must be one of: "+strings.Join(frequency.Names(), ", ")))
			return
		}
		filter.Frequency = tier
	}
	filter.Search = strings.TrimSpace(r.URL.Query().Get("search"))

	chores, err := h.chores.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, "list chores", err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tier, ok := bodyTier(w, "frequency", req.Frequency)
	if !ok {
		return
	}

	if ok := h.checkAssignees(w, r, req.AssigneeIDs); !ok {
		return
	}

	c, err := h.chores.Create(r.Context(), store.ChoreInput{
		Title:       req.Title,
		Description: req.Description,
		Frequency:   tier,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		writeServiceError(w, h.logger, "create chore", err)
		return
	}

	h.broadcast(r, websocket.EntityChore, websocket.ActionCreated, c.ID, nil)
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.views.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get chore", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateChoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == nil && req.Frequency == nil && !req.Description.Set && req.AssigneeIDs == nil {
		writeValidation(w, apperr.Invalid("", "At least one field must be provided"))
		return
	}
	if d := req.Description.Value; d != nil && len(*d) > maxDescription {
		writeValidation(w, apperr.Invalid("description", "Must be at most 2000 characters"))
		return
	}

	existing, err := h.chores.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "get chore", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	upd := store.ChoreUpdate{
		Title:          req.Title,
		Description:    req.Description.Value,
		DescriptionSet: req.Description.Set,
	}
	if req.Frequency != nil {
		tier, ok := bodyTier(w, "frequency", *req.Frequency)
		if !ok {
			return
		}
		upd.Frequency = &tier
	}
	if req.AssigneeIDs != nil {
		if ok := h.checkAssignees(w, r, *req.AssigneeIDs); !ok {
			return
		}
		upd.AssigneeIDs = *req.AssigneeIDs
		upd.AssigneesSet = true
	}

	c, err := h.chores.Update(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, h.logger, "update chore", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	h.broadcast(r, websocket.EntityChore, websocket.ActionUpdated, id, nil)
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := h.chores.Delete(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, "delete chore", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	h.broadcast(r, websocket.EntityChore, websocket.ActionDeleted, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	UserID string `json:"userId" validate:"notblank"`
}

func (r *assignRequest) normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

func (h *ChoreHandler) Assign(w http.ResponseWriter, r *http.Request) {
	choreID := r.PathValue("id")

	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.chores.GetByID(r.Context(), choreID)
	if err != nil {
		writeServiceError(w, h.logger, "get chore", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}
	u, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeServiceError(w, h.logger, "get user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	a, created, err := h.chores.Assign(r.Context(), choreID, req.UserID)
	if err != nil {
		writeServiceError(w, h.logger, "assign chore", err)
		return
	}
	if !created {
		writeError(w, http.StatusConflict, "user is already assigned to this chore")
		return
	}

	h.broadcast(r, websocket.EntityAssignment, websocket.ActionCreated, choreID, map[string]any{"userId": req.UserID})
	writeJSON(w, http.StatusCreated, a)
}

func (h *ChoreHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	choreID, userID := r.PathValue("id"), r.PathValue("userId")
	ok, err := h.chores.Unassign(r.Context(), choreID, userID)
	if err != nil {
		writeServiceError(w, h.logger, "unassign chore", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "assignment not found")
		return
	}

	h.broadcast(r, websocket.EntityAssignment, websocket.ActionDeleted, choreID, map[string]any{"userId": userID})
	w.WriteHeader(http.StatusNoContent)
}

// checkAssignees rejects ids that do not name a user.
func (h *ChoreHandler) checkAssignees(w http.ResponseWriter, r *http.Request, ids []string) bool {
	ve := &apperr.ValidationError{}
	for _, id := range ids {
		u, err := h.users.GetByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.logger, "check assignee", err)
			return false
		}
		if u == nil {
			ve.Add("assigneeIds", "Unknown user: "+id)
		}
	}
	if !ve.Empty() {
		writeValidation(w, ve)
		return false
	}
	return true
}
