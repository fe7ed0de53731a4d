package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/auth"
	"github.com/dukerupert/choreplan/internal/store"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "choreplan_session"

// SessionToken reads the token from the session cookie or, failing that,
// an "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireApprovedUser validates the session and populates AuthContext.
// Unknown or expired sessions get 401; accounts awaiting approval get 403.
func RequireApprovedUser(sessions *store.SessionStore, users *store.UserStore, now func() time.Time, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			sess, err := sessions.GetByToken(r.Context(), token, now())
			if err != nil {
				logger.Error("load session", "error", err)
				writeError(w, http.StatusInternalServerError, "something went wrong")
				return
			}
			if sess == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			user, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil {
				logger.Error("load session user", "error", err)
				writeError(w, http.StatusInternalServerError, "something went wrong")
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !user.Approved {
				writeError(w, http.StatusForbidden, "pending approval")
				return
			}

			ac := auth.AuthContext{
				UserID:       user.ID,
				Name:         user.Name,
				Image:        user.Image,
				SessionToken: sess.Token,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
