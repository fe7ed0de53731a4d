package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/choreplan/internal/cascade"
	"github.com/dukerupert/choreplan/internal/chore"
	"github.com/dukerupert/choreplan/internal/handler"
	"github.com/dukerupert/choreplan/internal/middleware"
	"github.com/dukerupert/choreplan/internal/schedule"
	"github.com/dukerupert/choreplan/internal/store"
	ws "github.com/dukerupert/choreplan/internal/websocket"
)

// Options carries the settings the HTTP layer needs.
type Options struct {
	SessionTTL     time.Duration
	SecureCookies  bool
	SignInEvery    time.Duration
	SignInBurst    int
	OriginPatterns []string
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	authH          *handler.AuthHandler
	userH          *handler.UserHandler
	choreH         *handler.ChoreHandler
	scheduleH      *handler.ScheduleHandler
	completionH    *handler.CompletionHandler
	dashboardH     *handler.DashboardHandler
	userStore      *store.UserStore
	sessionStore   *store.SessionStore
	scheduler      *schedule.Service
	rateLimiter    *middleware.RateLimiter
	originPatterns []string
	now            func() time.Time
	logger         *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	hub := ws.NewHub(logger)

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	choreStore := store.NewChoreStore(db)
	scheduleStore := store.NewScheduleStore(db)
	completionStore := store.NewCompletionStore(db)

	engine := cascade.NewEngine(choreStore, scheduleStore)
	scheduler := schedule.NewService(choreStore, scheduleStore, completionStore, engine, logger)
	views := chore.NewService(choreStore, scheduleStore, completionStore, scheduler, engine, logger)

	clock := handler.Clock(now)
	return &Server{
		db:             db,
		hub:            hub,
		authH:          handler.NewAuthHandler(userStore, sessionStore, opts.SessionTTL, opts.SecureCookies, clock, logger),
		userH:          handler.NewUserHandler(userStore, logger),
		choreH:         handler.NewChoreHandler(choreStore, userStore, views, hub, logger),
		scheduleH:      handler.NewScheduleHandler(scheduleStore, scheduler, engine, views, hub, clock, logger),
		completionH:    handler.NewCompletionHandler(completionStore, scheduler, hub, clock, logger),
		dashboardH:     handler.NewDashboardHandler(views, clock, logger),
		userStore:      userStore,
		sessionStore:   sessionStore,
		scheduler:      scheduler,
		rateLimiter:    middleware.NewRateLimiter(opts.SignInEvery, opts.SignInBurst),
		originPatterns: opts.OriginPatterns,
		now:            now,
		logger:         logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// Scheduler returns the schedule service the nightly runner drives.
func (s *Server) Scheduler() *schedule.Service {
	return s.scheduler
}

// RateLimiter returns the sign-in limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("POST /api/auth/sign-in", middleware.RateLimit(s.rateLimiter, middleware.RealIP)(http.HandlerFunc(s.authH.SignIn)))
	outerMux.HandleFunc("POST /api/auth/sign-out", s.authH.SignOut)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireApprovedUser(s.sessionStore, s.userStore, s.now, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
		"users":   s.hub.UserCount(),
	})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("GET /api/users", s.userH.List)

	// Chores and assignments
	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PUT /api/chores/{id}", s.choreH.Update)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/assignments", s.choreH.Assign)
	mux.HandleFunc("DELETE /api/chores/{id}/assignments/{userId}", s.choreH.Unassign)

	// Schedules
	mux.HandleFunc("GET /api/schedules", s.scheduleH.List)
	mux.HandleFunc("POST /api/schedules", s.scheduleH.Create)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.scheduleH.Delete)
	mux.HandleFunc("POST /api/schedules/{id}/hide", s.scheduleH.Hide)
	mux.HandleFunc("POST /api/schedules/suggest", s.scheduleH.Suggest)
	mux.HandleFunc("POST /api/schedules/ensure", s.scheduleH.Ensure)
	mux.HandleFunc("GET /api/schedules/pace", s.scheduleH.Pace)
	mux.HandleFunc("GET /api/schedule/month", s.scheduleH.Month)

	// Completions
	mux.HandleFunc("GET /api/completions", s.completionH.List)
	mux.HandleFunc("POST /api/completions", s.completionH.Create)
	mux.HandleFunc("DELETE /api/completions", s.completionH.Delete)

	mux.HandleFunc("GET /api/dashboard", s.dashboardH.Get)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.originPatterns))
}
