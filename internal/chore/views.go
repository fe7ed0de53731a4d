// Package chore assembles the read-side views of the household's chores:
// the dashboard, the month planner and chore detail.
package chore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/cascade"
	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/schedule"
	"github.com/dukerupert/choreplan/internal/store"
)

const (
	recentLimit    = 5
	upcomingDays   = 14
	streakLookback = 366
)

type Service struct {
	chores      *store.ChoreStore
	schedules   *store.ScheduleStore
	completions *store.CompletionStore
	planner     *schedule.Service
	engine      *cascade.Engine
	logger      *slog.Logger
}

func NewService(chores *store.ChoreStore, schedules *store.ScheduleStore, completions *store.CompletionStore, planner *schedule.Service, engine *cascade.Engine, logger *slog.Logger) *Service {
	return &Service{
		chores:      chores,
		schedules:   schedules,
		completions: completions,
		planner:     planner,
		engine:      engine,
		logger:      logger.With("component", "chore"),
	}
}

type Stats struct {
	ChoresCount       int `json:"choresCount"`
	CompletedTotal    int `json:"completedTotal"`
	CompletedThisWeek int `json:"completedThisWeek"`
	StreakDays        int `json:"streakDays"`
}

type Dashboard struct {
	Today  string                   `json:"today"`
	Stats  Stats                    `json:"stats"`
	Tasks  []Task                   `json:"tasks"`
	Recent []model.CompletionDetail `json:"recent"`
}

// Dashboard fills today's daily schedules, then reports the user's stats,
// the tasks due today that are theirs or shared, and household activity.
func (s *Service) Dashboard(ctx context.Context, userID string, now time.Time) (*Dashboard, error) {
	if _, err := s.planner.EnsureDaily(ctx, now, nil); err != nil {
		return nil, fmt.Errorf("ensure daily schedules: %w", err)
	}

	today := calendar.StartOfDay(now)
	weekStart := calendar.StartOfWeek(now)

	var stats Stats
	var err error
	if stats.ChoresCount, err = s.chores.Count(ctx); err != nil {
		return nil, err
	}
	if stats.CompletedTotal, err = s.completions.Count(ctx, store.CompletionFilter{UserID: userID}); err != nil {
		return nil, err
	}
	if stats.CompletedThisWeek, err = s.completions.Count(ctx, store.CompletionFilter{UserID: userID, From: &weekStart}); err != nil {
		return nil, err
	}
	times, err := s.completions.CompletedTimes(ctx, userID, today.AddDate(0, 0, -streakLookback))
	if err != nil {
		return nil, err
	}
	stats.StreakDays = StreakDays(times, now)

	todays, err := s.schedules.List(ctx, store.ScheduleFilter{From: &today, To: &today})
	if err != nil {
		return nil, err
	}
	recent, err := s.completions.List(ctx, store.CompletionFilter{Limit: recentLimit})
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Today:  calendar.DayKey(today),
		Stats:  stats,
		Tasks:  TasksFor(todays, userID),
		Recent: recent,
	}, nil
}

type Planner struct {
	Month    string                `json:"month"`
	Title    string                `json:"title"`
	Today    string                `json:"today"`
	Grid     []calendar.GridCell   `json:"grid"`
	Chores   []model.Chore         `json:"chores"`
	Days     []Task                `json:"schedules"`
	Upcoming []Task                `json:"upcoming"`
	Pace     []cascade.PaceWarning `json:"paceWarnings"`
}

// Planner builds the month scheduling view: the 42-cell grid, every
// schedule in the month, the next two weeks and current pace warnings.
func (s *Service) Planner(ctx context.Context, userID string, year int, month time.Month, now time.Time) (*Planner, error) {
	if _, err := s.planner.EnsureDaily(ctx, now, nil); err != nil {
		return nil, fmt.Errorf("ensure daily schedules: %w", err)
	}

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthLast := monthStart.AddDate(0, 1, -1)
	today := calendar.StartOfDay(now)
	upcomingLast := today.AddDate(0, 0, upcomingDays-1)

	chores, err := s.chores.ListByTitle(ctx)
	if err != nil {
		return nil, err
	}
	monthRows, err := s.schedules.List(ctx, store.ScheduleFilter{From: &monthStart, To: &monthLast})
	if err != nil {
		return nil, err
	}
	upcomingRows, err := s.schedules.List(ctx, store.ScheduleFilter{From: &today, To: &upcomingLast})
	if err != nil {
		return nil, err
	}
	pace, err := s.engine.CheckPace(ctx, now)
	if err != nil {
		return nil, err
	}
	if chores == nil {
		chores = []model.Chore{}
	}

	return &Planner{
		Month:    monthStart.Format("2006-01"),
		Title:    calendar.MonthTitle(year, month),
		Today:    calendar.DayKey(today),
		Grid:     calendar.MonthGrid(year, month),
		Chores:   chores,
		Days:     Tasks(monthRows, userID),
		Upcoming: Tasks(upcomingRows, userID),
		Pace:     pace,
	}, nil
}

// Detail returns a chore with its latest completions and total count.
func (s *Service) Detail(ctx context.Context, id string) (*model.ChoreDetail, error) {
	c, err := s.chores.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("chore")
	}

	filter := store.CompletionFilter{ChoreID: id, Limit: recentLimit}
	recent, err := s.completions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.completions.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &model.ChoreDetail{Chore: *c, RecentCompletions: recent, CompletionCount: count}, nil
}
