// Package handler serves the JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/auth"
	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/cascade"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/validate"
	"github.com/dukerupert/choreplan/internal/websocket"
)

const maxBodyBytes = 1 << 20

// Clock returns the current instant. Handlers take one so tests can pin "now".
type Clock func() time.Time

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type validationResponse struct {
	Error   string                  `json:"error"`
	Details *apperr.ValidationError `json:"details"`
}

func writeValidation(w http.ResponseWriter, ve *apperr.ValidationError) {
	details := &apperr.ValidationError{FormErrors: ve.FormErrors, FieldErrors: ve.FieldErrors}
	if details.FormErrors == nil {
		details.FormErrors = []string{}
	}
	if details.FieldErrors == nil {
		details.FieldErrors = map[string][]string{}
	}
	writeJSON(w, http.StatusBadRequest, validationResponse{Error: "Validation failed", Details: details})
}

// writeServiceError maps service errors onto statuses. Anything unrecognised
// is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeValidation(w, ve)
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, cascade.ErrNoSuggestion),
		errors.Is(err, cascade.ErrNoSourceTier):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrIncompatible):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}

// decodeJSON reads a JSON body into dst and validates it. It writes the
// 400 response itself and reports false when the request must stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if n, ok := dst.(interface{ normalize() }); ok {
		n.normalize()
	}
	if err := validate.Struct(dst); err != nil {
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			writeValidation(w, ve)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// notifier broadcasts live updates when a hub is configured.
type notifier struct {
	hub *websocket.Hub
}

func (n notifier) broadcast(r *http.Request, entity, action, id string, extra map[string]any) {
	if n.hub == nil {
		return
	}
	n.hub.Broadcast(websocket.NewMessage(entity, action, id, auth.UserID(r.Context()), extra))
}

// queryDate parses an optional date query parameter into *t. Problems are
// recorded on ve under the parameter name.
func queryDate(r *http.Request, name string, ve *apperr.ValidationError) *time.Time {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	t, err := calendar.ParseDate(raw)
	if err != nil {
		ve.Add(name, "Invalid date")
		return nil
	}
	return &t
}

// bodyTier converts a validated tier field. The validator's "tier" tag runs
// the same parse, but a failure here still answers 400 instead of passing a
// zero Tier on.
func bodyTier(w http.ResponseWriter, field, raw string) (frequency.Tier, bool) {
	t, err := frequency.Parse(raw)
	if err != nil {
		writeValidation(w, apperr.Invalid(field, "Must be one of: "+strings.Join(frequency.Names(), ", ")))
		return 0, false
	}
	return t, true
}

// bodyDate is bodyTier for "date" fields.
func bodyDate(w http.ResponseWriter, field, raw string) (time.Time, bool) {
	t, err := calendar.ParseDate(raw)
	if err != nil {
		writeValidation(w, apperr.Invalid(field, "Invalid date"))
		return time.Time{}, false
	}
	return t, true
}

// checkRange records an error when both bounds are set and from is after to.
func checkRange(from, to *time.Time, ve *apperr.ValidationError) {
	if from != nil && to != nil && from.After(*to) {
		ve.Add("from", "must not be after to")
	}
}

// queryInt parses an optional integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int, ve *apperr.ValidationError) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		ve.Add(name, "Must be an integer")
		return def
	}
	return n
}

// queryIntOr is queryInt that falls back to def instead of reporting.
func queryIntOr(r *http.Request, name string, def int) int {
	return queryInt(r, name, def, &apperr.ValidationError{})
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// emptyToNil turns a blank optional text field into "no value".
func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
