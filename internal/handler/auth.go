package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/choreplan/internal/auth"
	"github.com/dukerupert/choreplan/internal/middleware"
	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/store"
)

// dummyHash keeps sign-in timing similar whether or not the email exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("choreplan-timing"), bcrypt.DefaultCost)

type AuthHandler struct {
	users         *store.UserStore
	sessions      *store.SessionStore
	ttl           time.Duration
	secureCookies bool
	now           Clock
	logger        *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, ttl time.Duration, secureCookies bool, now Clock, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:         us,
		sessions:      ss,
		ttl:           ttl,
		secureCookies: secureCookies,
		now:           now,
		logger:        logger.With("component", "auth"),
	}
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *signInRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type signInResponse struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.logger, "sign-in lookup", err)
		return
	}
	hash := dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)); err != nil || user == nil {
		h.logger.Info("sign-in rejected", "email", req.Email, "ip", middleware.RealIP(r))
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, h.now(), h.ttl)
	if err != nil {
		writeServiceError(w, h.logger, "create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("signed in", "user_id", user.ID, "approved", user.Approved)
	writeJSON(w, http.StatusOK, signInResponse{User: *user, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

// SignOut drops the caller's session if there is one and clears the cookie.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, "load current user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type UserHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewUserHandler(us *store.UserStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, logger: logger.With("component", "users")}
}

// List returns approved users, the pool chores can be assigned to.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListApproved(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list users", err)
		return
	}
	refs := make([]model.UserRef, 0, len(users))
	for _, u := range users {
		refs = append(refs, u.Ref())
	}
	writeJSON(w, http.StatusOK, refs)
}
