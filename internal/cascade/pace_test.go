package cascade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
)

func TestCheckPaceYearlyInDecember(t *testing.T) {
	chores := &fakeChores{chores: []model.CandidateChore{
		candidate("1", "Gutters", frequency.Yearly, ""),
		candidate("2", "Chimney", frequency.Yearly, ""),
		candidate("3", "Attic", frequency.Yearly, ""),
	}}
	e := NewEngine(chores, fakeSchedules{})
	december := time.Date(2026, 12, 10, 12, 0, 0, 0, time.UTC)

	warnings, err := e.CheckPace(context.Background(), december)
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	w := warnings[0]
	assert.Equal(t, frequency.Yearly, w.SourceTier)
	assert.Equal(t, 3, w.RemainingChores)
	assert.Equal(t, 1, w.RemainingSlots)
	assert.Equal(t, 3, w.TotalChores)
	assert.Equal(t, 0, w.ScheduledChores)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), w.Cycle.Start)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), w.Cycle.End)
	assert.Contains(t, w.Message, "YEARLY")
}

func TestCheckPaceCountsScheduled(t *testing.T) {
	chores := &fakeChores{chores: []model.CandidateChore{
		candidate("1", "A", frequency.Yearly, ""),
		candidate("2", "B", frequency.Yearly, ""),
		candidate("3", "C", frequency.Yearly, ""),
	}}
	e := NewEngine(chores, fakeSchedules{frequency.Yearly: {"1", "2"}})
	december := time.Date(2026, 12, 10, 12, 0, 0, 0, time.UTC)

	warnings, err := e.CheckPace(context.Background(), december)
	require.NoError(t, err)
	assert.Empty(t, warnings, "one remaining chore fits the one remaining slot")
}

func TestCheckPaceWeeklyLateInWeek(t *testing.T) {
	var cs []model.CandidateChore
	for _, id := range []string{"a", "b", "c"} {
		cs = append(cs, candidate(id, id, frequency.Weekly, ""))
	}
	e := NewEngine(&fakeChores{chores: cs}, fakeSchedules{})
	saturday := time.Date(2026, 2, 7, 9, 0, 0, 0, time.UTC)

	warnings, err := e.CheckPace(context.Background(), saturday)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, frequency.Weekly, warnings[0].SourceTier)
	assert.Equal(t, 2, warnings[0].RemainingSlots)
}

func TestCheckPaceEmptyIsQuiet(t *testing.T) {
	e := NewEngine(&fakeChores{}, fakeSchedules{})
	warnings, err := e.CheckPace(context.Background(), now)
	require.NoError(t, err)
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)
}

func TestRemainingSlots(t *testing.T) {
	tests := []struct {
		tier frequency.Tier
		now  string
		want int
	}{
		{frequency.Weekly, "2026-02-02T08:00:00Z", 7}, // Monday
		{frequency.Weekly, "2026-02-08T23:00:00Z", 1}, // Sunday
		{frequency.Biweekly, "2026-01-26T08:00:00Z", 2},
		{frequency.Biweekly, "2026-02-07T08:00:00Z", 1},
		{frequency.Monthly, "2026-02-01T08:00:00Z", 4},
		{frequency.Monthly, "2026-02-27T08:00:00Z", 1},
		{frequency.Monthly, "2026-03-01T08:00:00Z", 5},
		{frequency.Monthly, "2026-03-25T08:00:00Z", 1},
		{frequency.Bimonthly, "2026-01-15T08:00:00Z", 2},
		{frequency.Bimonthly, "2026-02-15T08:00:00Z", 1},
		{frequency.Semiannual, "2026-01-15T08:00:00Z", 3},
		{frequency.Semiannual, "2026-04-15T08:00:00Z", 2},
		{frequency.Semiannual, "2026-06-30T08:00:00Z", 1},
		{frequency.Semiannual, "2026-12-31T08:00:00Z", 1},
		{frequency.Yearly, "2026-01-01T00:00:00Z", 12},
		{frequency.Yearly, "2026-03-01T08:00:00Z", 10},
		{frequency.Yearly, "2026-12-01T08:00:00Z", 1},
		{frequency.Daily, "2026-12-01T08:00:00Z", 0},
	}
	for _, tt := range tests {
		at, err := time.Parse(time.RFC3339, tt.now)
		require.NoError(t, err)
		assert.Equal(t, tt.want, RemainingSlots(tt.tier, at), "%s at %s", tt.tier, tt.now)
	}
}

func TestCheckPaceYearlyInMarchIsQuiet(t *testing.T) {
	chores := &fakeChores{chores: []model.CandidateChore{
		candidate("1", "A", frequency.Yearly, ""),
		candidate("2", "B", frequency.Yearly, ""),
		candidate("3", "C", frequency.Yearly, ""),
	}}
	e := NewEngine(chores, fakeSchedules{})
	march := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	warnings, err := e.CheckPace(context.Background(), march)
	require.NoError(t, err)
	assert.Empty(t, warnings, "ten months remain for three chores")
}
