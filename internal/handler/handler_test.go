package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/cascade"
)

func TestWriteServiceError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name string
		err  error
		want int
		msg  string
	}{
		{"not found", apperr.NotFound("chore"), http.StatusNotFound, "chore not found"},
		{"wrapped not found", fmt.Errorf("load: %w", apperr.NotFound("schedule")), http.StatusNotFound, "load: schedule not found"},
		{"no suggestion", cascade.ErrNoSuggestion, http.StatusNotFound, cascade.ErrNoSuggestion.Error()},
		{"no source tier", cascade.ErrNoSourceTier, http.StatusNotFound, cascade.ErrNoSourceTier.Error()},
		{"conflict", apperr.Conflict("already assigned"), http.StatusConflict, "already assigned"},
		{"incompatible", apperr.ErrIncompatible, http.StatusBadRequest, apperr.ErrIncompatible.Error()},
		{"storage", errors.New("disk I/O error"), http.StatusInternalServerError, "something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, logger, "op", tt.err)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tt.msg {
				t.Errorf("expected message %q, got %q", tt.msg, body["error"])
			}
		})
	}
}

func TestWriteServiceErrorValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, slog.Default(), "op", fmt.Errorf("create: %w", apperr.Invalid("through", "too far")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	want := `{"error":"Validation failed","details":{"formErrors":[],"fieldErrors":{"through":["too far"]}}}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}

type decodeTarget struct {
	Name string `json:"name" validate:"notblank"`
	seen bool
}

func (d *decodeTarget) normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.seen = true
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var dst decodeTarget
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"  Ada "}`))
		rec := httptest.NewRecorder()
		if !decodeJSON(rec, req, &dst) {
			t.Fatalf("expected success, got %d %s", rec.Code, rec.Body.String())
		}
		if dst.Name != "Ada" || !dst.seen {
			t.Errorf("expected normalized target, got %+v", dst)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		var dst decodeTarget
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`))
		rec := httptest.NewRecorder()
		if decodeJSON(rec, req, &dst) {
			t.Fatal("expected failure")
		}
		if !strings.Contains(rec.Body.String(), "invalid JSON") {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("empty body still validates", func(t *testing.T) {
		var dst decodeTarget
		req := httptest.NewRequest("POST", "/", http.NoBody)
		rec := httptest.NewRecorder()
		if decodeJSON(rec, req, &dst) {
			t.Fatal("expected validation failure")
		}
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"name":["name is required"]`) {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestBodyFieldsRejectUnparsedValues(t *testing.T) {
	rec := httptest.NewRecorder()
	if _, ok := bodyTier(rec, "slotType", "HOURLY"); ok {
		t.Fatal("expected tier failure")
	}
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"slotType"`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if _, ok := bodyDate(rec, "through", "soon"); ok {
		t.Fatal("expected date failure")
	}
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"through":["Invalid date"]`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	tier, ok := bodyTier(rec, "frequency", "weekly")
	if !ok || tier.String() != "WEEKLY" {
		t.Errorf("got %v %v, want WEEKLY", tier, ok)
	}
}
