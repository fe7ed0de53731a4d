package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/choreplan/internal/apperr"
	"github.com/dukerupert/choreplan/internal/cascade"
	"github.com/dukerupert/choreplan/internal/database"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/store"
)

type fixture struct {
	svc         *Service
	chores      *store.ChoreStore
	users       *store.UserStore
	schedules   *store.ScheduleStore
	completions *store.CompletionStore
	sessions    *store.SessionStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		chores:      store.NewChoreStore(db),
		users:       store.NewUserStore(db),
		schedules:   store.NewScheduleStore(db),
		completions: store.NewCompletionStore(db),
		sessions:    store.NewSessionStore(db),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := cascade.NewEngine(f.chores, f.schedules)
	f.svc = NewService(f.chores, f.schedules, f.completions, engine, logger)
	return f
}

func (f *fixture) chore(t *testing.T, title string, tier frequency.Tier) *model.Chore {
	t.Helper()
	c, err := f.chores.Create(context.Background(), store.ChoreInput{Title: title, Frequency: tier})
	require.NoError(t, err)
	return c
}

func (f *fixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), email, email, "")
	require.NoError(t, err)
	return u
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}

func TestEnsureDailyIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, title := range []string{"Dishes", "Bed", "Litter"} {
		f.chore(t, title, frequency.Daily)
	}
	f.chore(t, "Vacuum", frequency.Weekly)
	now := at(t, "2026-02-07T14:30:00Z")

	created, err := f.svc.EnsureDaily(ctx, now, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	again, err := f.svc.EnsureDaily(ctx, now, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, again)

	rows, err := f.schedules.List(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, at(t, "2026-02-07T00:00:00Z"), r.ScheduledFor)
		assert.Equal(t, frequency.Daily, r.SlotType)
		assert.False(t, r.Suggested)
	}
}

func TestEnsureDailyThrough(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.chore(t, "Dishes", frequency.Daily)
	f.chore(t, "Bed", frequency.Daily)
	now := at(t, "2026-02-07T14:30:00Z")

	through := at(t, "2026-02-10T08:00:00Z")
	created, err := f.svc.EnsureDaily(ctx, now, &through)
	require.NoError(t, err)
	assert.Equal(t, 6, created, "Feb 7, 8 and 9 for two chores")

	past := at(t, "2026-02-01T00:00:00Z")
	created, err = f.svc.EnsureDaily(ctx, now, &past)
	require.NoError(t, err)
	assert.Equal(t, 0, created, "a through before today still covers only today")

	far := now.AddDate(2, 0, 0)
	_, err = f.svc.EnsureDaily(ctx, now, &far)
	var verr *apperr.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEnsureDailyWithoutDailyChores(t *testing.T) {
	f := setup(t)
	f.chore(t, "Vacuum", frequency.Weekly)

	created, err := f.svc.EnsureDaily(context.Background(), at(t, "2026-02-07T14:30:00Z"), nil)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestCreateScheduleIdempotentAndNarrowsSuggested(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.chore(t, "Vacuum", frequency.Weekly)

	first, created, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID: c.ID, ScheduledFor: at(t, "2026-02-07T23:59:59Z"), SlotType: frequency.Daily, Suggested: true,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, first.Suggested)

	second, created, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID: c.ID, ScheduledFor: at(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Daily,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Suggested, "a manual request narrows suggested to false")

	third, _, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID: c.ID, ScheduledFor: at(t, "2026-02-07T12:00:00Z"), SlotType: frequency.Daily, Suggested: true,
	})
	require.NoError(t, err)
	assert.False(t, third.Suggested, "suggested never widens back to true")
}

func TestCreateScheduleErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	monthly := f.chore(t, "Oven", frequency.Monthly)

	_, _, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID: "missing", ScheduledFor: at(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Daily,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = f.svc.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID: monthly.ID, ScheduledFor: at(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Daily,
	})
	assert.ErrorIs(t, err, apperr.ErrIncompatible)

	_, created, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID: monthly.ID, ScheduledFor: at(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Biweekly,
	})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCreateScheduleAfterFrequencyChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.chore(t, "Vacuum", frequency.Weekly)
	day := at(t, "2026-02-07T00:00:00Z")

	first, created, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{ChoreID: c.ID, ScheduledFor: day, SlotType: frequency.Daily})
	require.NoError(t, err)
	require.True(t, created)

	yearly := frequency.Yearly
	_, err = f.chores.Update(ctx, c.ID, store.ChoreUpdate{Frequency: &yearly})
	require.NoError(t, err)

	again, created, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{ChoreID: c.ID, ScheduledFor: day, SlotType: frequency.Daily})
	require.NoError(t, err, "an existing row is returned before compatibility is checked")
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = f.svc.CreateSchedule(ctx, CreateScheduleParams{ChoreID: c.ID, ScheduledFor: day.AddDate(0, 0, 1), SlotType: frequency.Daily})
	assert.ErrorIs(t, err, apperr.ErrIncompatible, "new rows still need a compatible tier")
}

func TestCreateSuggestedSchedule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.chore(t, "Windows", frequency.Weekly)
	now := at(t, "2026-02-07T09:00:00Z")

	sched, suggestion, created, err := f.svc.CreateSuggestedSchedule(ctx, now, frequency.Daily, "", now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, sched.Suggested)
	assert.Equal(t, c.ID, suggestion.Chore.ID)

	_, _, _, err = f.svc.CreateSuggestedSchedule(ctx, now, frequency.Daily, "", now)
	assert.ErrorIs(t, err, cascade.ErrNoSuggestion)
}

func TestDeleteAndHideSchedule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.chore(t, "Dishes", frequency.Daily)
	sched, _, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{
		ChoreID: c.ID, ScheduledFor: at(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Daily,
	})
	require.NoError(t, err)

	hidden, err := f.svc.HideSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.True(t, hidden.Hidden)

	require.NoError(t, f.svc.DeleteSchedule(ctx, sched.ID))
	assert.ErrorIs(t, f.svc.DeleteSchedule(ctx, sched.ID), apperr.ErrNotFound)
	_, err = f.svc.HideSchedule(ctx, sched.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateCompletionFirstWins(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.chore(t, "Dishes", frequency.Daily)
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	now := at(t, "2026-02-07T18:00:00Z")
	sched, _, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{ChoreID: c.ID, ScheduledFor: now, SlotType: frequency.Daily})
	require.NoError(t, err)

	notes := "done early"
	first, created, err := f.svc.CreateCompletion(ctx, CreateCompletionParams{
		ChoreID: c.ID, UserID: a.ID, ScheduleID: &sched.ID, Notes: &notes,
	}, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, now, first.CompletedAt)

	other := "me too"
	second, created, err := f.svc.CreateCompletion(ctx, CreateCompletionParams{
		ChoreID: c.ID, UserID: b.ID, ScheduleID: &sched.ID, Notes: &other,
	}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, a.ID, second.UserID)
	require.NotNil(t, second.Notes)
	assert.Equal(t, notes, *second.Notes)
}

func TestCreateCompletionConcurrentRace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.chore(t, "Dishes", frequency.Daily)
	now := at(t, "2026-02-07T18:00:00Z")
	sched, _, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{ChoreID: c.ID, ScheduledFor: now, SlotType: frequency.Daily})
	require.NoError(t, err)

	const racers = 8
	users := make([]*model.User, racers)
	for i := range users {
		users[i] = f.user(t, "racer"+string(rune('a'+i))+"@example.com")
	}

	var wg sync.WaitGroup
	results := make([]*model.CompletionDetail, racers)
	createdFlags := make([]bool, racers)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], createdFlags[i], errs[i] = f.svc.CreateCompletion(ctx, CreateCompletionParams{
				ChoreID: c.ID, UserID: users[i].ID, ScheduleID: &sched.ID,
			}, now)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < racers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
		if createdFlags[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	total, err := f.completions.Count(ctx, store.CompletionFilter{ChoreID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestCreateCompletionErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dishes := f.chore(t, "Dishes", frequency.Daily)
	bed := f.chore(t, "Bed", frequency.Daily)
	u := f.user(t, "a@example.com")
	now := at(t, "2026-02-07T18:00:00Z")
	sched, _, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{ChoreID: dishes.ID, ScheduledFor: now, SlotType: frequency.Daily})
	require.NoError(t, err)

	_, _, err = f.svc.CreateCompletion(ctx, CreateCompletionParams{ChoreID: "missing", UserID: u.ID}, now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	missing := "missing"
	_, _, err = f.svc.CreateCompletion(ctx, CreateCompletionParams{ChoreID: dishes.ID, UserID: u.ID, ScheduleID: &missing}, now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = f.svc.CreateCompletion(ctx, CreateCompletionParams{ChoreID: bed.ID, UserID: u.ID, ScheduleID: &sched.ID}, now)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	adhoc, created, err := f.svc.CreateCompletion(ctx, CreateCompletionParams{ChoreID: bed.ID, UserID: u.ID}, now)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, adhoc.ScheduleID)
}

func TestDeleteCompletionOnlyOwn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	c := f.chore(t, "Dishes", frequency.Daily)
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	now := at(t, "2026-02-07T18:00:00Z")
	sched, _, err := f.svc.CreateSchedule(ctx, CreateScheduleParams{ChoreID: c.ID, ScheduledFor: now, SlotType: frequency.Daily})
	require.NoError(t, err)
	_, _, err = f.svc.CreateCompletion(ctx, CreateCompletionParams{ChoreID: c.ID, UserID: a.ID, ScheduleID: &sched.ID}, now)
	require.NoError(t, err)

	_, err = f.svc.DeleteCompletion(ctx, sched.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	removed, err := f.svc.DeleteCompletion(ctx, sched.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.UserID)
}
