package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/choreplan/internal/store"
)

const (
	ensureSpec  = "5 0 * * *"
	cleanupSpec = "@hourly"
	jobTimeout  = 2 * time.Minute
)

// Runner keeps daily schedules filled ahead of time and clears expired
// sessions on a UTC cron.
type Runner struct {
	mu       sync.Mutex
	service  *Service
	sessions *store.SessionStore
	logger   *slog.Logger
	horizon  int
	now      func() time.Time
	c        *cron.Cron
	ctx      context.Context
}

// NewRunner creates a runner that ensures horizon days of daily schedules.
func NewRunner(svc *Service, sessions *store.SessionStore, horizon int, logger *slog.Logger) *Runner {
	if horizon < 1 {
		horizon = 1
	}
	return &Runner{
		service:  svc,
		sessions: sessions,
		logger:   logger.With("component", "runner"),
		horizon:  horizon,
		now:      time.Now,
	}
}

// Start registers the jobs and runs one ensure pass immediately.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}

	r.ctx = ctx
	r.c = cron.New(cron.WithLocation(time.UTC))
	if _, err := r.c.AddFunc(ensureSpec, r.ensure); err != nil {
		return err
	}
	if _, err := r.c.AddFunc(cleanupSpec, r.cleanup); err != nil {
		return err
	}

	r.ensure()
	r.c.Start()
	r.logger.Info("runner started", "ensure", ensureSpec, "cleanup", cleanupSpec, "horizon_days", r.horizon)
	return nil
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		r.logger.Info("runner stopped")
	}
}

// Run starts the runner and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	r.Stop()
	return nil
}

func (r *Runner) ensure() {
	ctx, cancel := context.WithTimeout(r.ctx, jobTimeout)
	defer cancel()

	now := r.now()
	through := now.AddDate(0, 0, r.horizon)
	created, err := r.service.EnsureDaily(ctx, now, &through)
	if err != nil {
		r.logger.Error("ensure daily schedules", "error", err)
		return
	}
	r.logger.Debug("ensure daily schedules", "created", created)
}

func (r *Runner) cleanup() {
	ctx, cancel := context.WithTimeout(r.ctx, jobTimeout)
	defer cancel()

	n, err := r.sessions.DeleteExpired(ctx, r.now())
	if err != nil {
		r.logger.Error("delete expired sessions", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("expired sessions removed", "count", n)
	}
}
