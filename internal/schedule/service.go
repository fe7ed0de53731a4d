// Package schedule owns the write paths for schedules and completions: the
// daily auto-scheduler, idempotent schedule creation and first-wins
// completion recording.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/cascade"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/store"
)

// MaxEnsureDays bounds how far ahead EnsureDaily may be asked to fill.
const MaxEnsureDays = 366

type Service struct {
	chores      *store.ChoreStore
	schedules   *store.ScheduleStore
	completions *store.CompletionStore
	engine      *cascade.Engine
	logger      *slog.Logger
}

func NewService(chores *store.ChoreStore, schedules *store.ScheduleStore, completions *store.CompletionStore, engine *cascade.Engine, logger *slog.Logger) *Service {
	return &Service{
		chores:      chores,
		schedules:   schedules,
		completions: completions,
		engine:      engine,
		logger:      logger.With("component", "schedule"),
	}
}

// EnsureDaily gives every DAILY chore a schedule for today and, when through
// is set, for each later day before through's UTC day. It returns the
// number of rows inserted; existing rows are left alone.
func (s *Service) EnsureDaily(ctx context.Context, now time.Time, through *time.Time) (int, error) {
	days := []time.Time{calendar.StartOfDay(now)}
	if through != nil {
		if span := calendar.StartOfDay(*through).Sub(days[0]); span > MaxEnsureDays*24*time.Hour {
			return 0, apperr.Invalid("through", fmt.Sprintf("must be within %d days", MaxEnsureDays))
		}
		if more := calendar.Days(now, *through); len(more) > 0 {
			days = more
		}
	}

	ids, err := s.chores.ListIDsByFrequency(ctx, frequency.Daily)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	rows := make([]store.NewSchedule, 0, len(ids)*len(days))
	for _, d := range days {
		for _, id := range ids {
			rows = append(rows, store.NewSchedule{ChoreID: id, ScheduledFor: d, SlotType: frequency.Daily})
		}
	}

	created, err := s.schedules.InsertMissing(ctx, rows)
	if err != nil {
		return 0, err
	}
	if created > 0 {
		s.logger.Info("daily schedules ensured", "created", created, "days", len(days), "chores", len(ids))
	}
	return created, nil
}

type CreateScheduleParams struct {
	ChoreID      string
	ScheduledFor time.Time
	SlotType     frequency.Tier
	Suggested    bool
}

// CreateSchedule places a chore on a day. Asking again for the same chore
// and day returns the existing row with created=false, even when the chore's
// frequency has since changed; compatibility is only checked for new rows.
func (s *Service) CreateSchedule(ctx context.Context, p CreateScheduleParams) (sched *model.Schedule, created bool, err error) {
	row := store.NewSchedule{
		ChoreID:      p.ChoreID,
		ScheduledFor: calendar.StartOfDay(p.ScheduledFor),
		SlotType:     p.SlotType,
		Suggested:    p.Suggested,
	}

	existing, err := s.schedules.GetByChoreDay(ctx, row.ChoreID, row.ScheduledFor)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		chore, err := s.chores.GetByID(ctx, p.ChoreID)
		if err != nil {
			return nil, false, err
		}
		if chore == nil {
			return nil, false, apperr.NotFound("chore")
		}
		if !frequency.CanFill(chore.Frequency, p.SlotType) {
			return nil, false, fmt.Errorf("%w: a %s chore cannot fill a %s slot", apperr.ErrIncompatible, chore.Frequency, p.SlotType)
		}
	}

	return s.schedules.Upsert(ctx, row)
}

// CreateSuggestedSchedule fills a slot with the engine's pick for it.
func (s *Service) CreateSuggestedSchedule(ctx context.Context, day time.Time, slot frequency.Tier, userID string, now time.Time) (*model.Schedule, *cascade.Suggestion, bool, error) {
	suggestion, err := s.engine.Suggest(ctx, slot, userID, now)
	if err != nil {
		return nil, nil, false, err
	}
	sched, created, err := s.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID:      suggestion.Chore.ID,
		ScheduledFor: day,
		SlotType:     slot,
		Suggested:    true,
	})
	if err != nil {
		return nil, nil, false, err
	}
	return sched, suggestion, created, nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	ok, err := s.schedules.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("schedule")
	}
	return nil
}

func (s *Service) HideSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	sched, err := s.schedules.Hide(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, apperr.NotFound("schedule")
	}
	return sched, nil
}

type CreateCompletionParams struct {
	ChoreID     string
	UserID      string
	ScheduleID  *string
	Notes       *string
	CompletedAt *time.Time
}

// CreateCompletion records that a chore was done. For a scheduled chore only
// the first completion is kept; later calls get that one back with
// created=false.
func (s *Service) CreateCompletion(ctx context.Context, p CreateCompletionParams, now time.Time) (*model.CompletionDetail, bool, error) {
	chore, err := s.chores.GetByID(ctx, p.ChoreID)
	if err != nil {
		return nil, false, err
	}
	if chore == nil {
		return nil, false, apperr.NotFound("chore")
	}

	in := store.NewCompletion{
		ChoreID:     p.ChoreID,
		UserID:      p.UserID,
		ScheduleID:  p.ScheduleID,
		Notes:       p.Notes,
		CompletedAt: now,
	}
	if p.CompletedAt != nil {
		in.CompletedAt = *p.CompletedAt
	}

	var c *model.Completion
	created := true
	if p.ScheduleID != nil {
		sched, err := s.schedules.GetByID(ctx, *p.ScheduleID)
		if err != nil {
			return nil, false, err
		}
		if sched == nil {
			return nil, false, apperr.NotFound("schedule")
		}
		if sched.ChoreID != p.ChoreID {
			return nil, false, apperr.Conflict("schedule does not belong to this chore")
		}
		c, created, err = s.completions.InsertForSchedule(ctx, in)
		if err != nil {
			return nil, false, err
		}
	} else {
		c, err = s.completions.InsertAdHoc(ctx, in)
		if err != nil {
			return nil, false, err
		}
	}

	detail, err := s.completions.GetDetail(ctx, c.ID)
	if err != nil {
		return nil, false, err
	}
	if detail == nil {
		return nil, false, apperr.NotFound("completion")
	}
	return detail, created, nil
}

// DeleteCompletion undoes the caller's own completion of a schedule.
func (s *Service) DeleteCompletion(ctx context.Context, scheduleID, userID string) (*model.Completion, error) {
	c, err := s.completions.DeleteOwn(ctx, scheduleID, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("completion")
	}
	return c, nil
}
