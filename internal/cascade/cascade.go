// Package cascade picks which chore from a coarser pool should fill a finer
// schedule slot, and reports tiers whose backlog outruns the time left in
// their cycle.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
)

var (
	ErrNoSourceTier = errors.New("slot type has no cascade source")
	ErrNoSuggestion = errors.New("no chore available to suggest")
)

type ChoreSource interface {
	ListCandidates(ctx context.Context, tier frequency.Tier, exclude []string) ([]model.CandidateChore, error)
	CountByFrequency(ctx context.Context, tier frequency.Tier) (int, error)
}

type ScheduleSource interface {
	ScheduledChoreIDs(ctx context.Context, tier frequency.Tier, r calendar.Range) ([]string, error)
}

type Engine struct {
	chores    ChoreSource
	schedules ScheduleSource
}

func NewEngine(chores ChoreSource, schedules ScheduleSource) *Engine {
	return &Engine{chores: chores, schedules: schedules}
}

type Suggestion struct {
	SlotType        frequency.Tier `json:"slotType"`
	SourceTier      frequency.Tier `json:"sourceFrequency"`
	Cycle           calendar.Range `json:"cycle"`
	Chore           model.Chore    `json:"chore"`
	LastCompletedAt *time.Time     `json:"lastCompletedAt"`
	AssignedToUser  bool           `json:"assignedToUser"`
}

// Suggest returns the chore from slot's cascade source that has waited
// longest, skipping chores already scheduled in the source tier's current
// cycle. userID may be empty.
func (e *Engine) Suggest(ctx context.Context, slot frequency.Tier, userID string, now time.Time) (*Suggestion, error) {
	source, ok := frequency.CascadeSource(slot)
	if !ok {
		return nil, ErrNoSourceTier
	}
	cycle := calendar.CycleFor(source, now)

	scheduled, err := e.schedules.ScheduledChoreIDs(ctx, source, cycle)
	if err != nil {
		return nil, fmt.Errorf("load scheduled chores: %w", err)
	}
	candidates, err := e.chores.ListCandidates(ctx, source, scheduled)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoSuggestion
	}

	top := Rank(candidates, userID)[0]
	return &Suggestion{
		SlotType:        slot,
		SourceTier:      source,
		Cycle:           cycle,
		Chore:           top.Chore,
		LastCompletedAt: top.LastCompletedAt,
		AssignedToUser:  userID != "" && top.AssignedTo(userID),
	}, nil
}

// Rank orders candidates best first: never completed, then oldest last
// completion, then assigned to userID, then by title. The input is not
// modified.
func Rank(candidates []model.CandidateChore, userID string) []model.CandidateChore {
	ranked := append([]model.CandidateChore(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j], userID)
	})
	return ranked
}

func less(a, b model.CandidateChore, userID string) bool {
	aNever, bNever := a.LastCompletedAt == nil, b.LastCompletedAt == nil
	if aNever != bNever {
		return aNever
	}
	if !aNever && !a.LastCompletedAt.Equal(*b.LastCompletedAt) {
		return a.LastCompletedAt.Before(*b.LastCompletedAt)
	}
	if userID != "" {
		aMine, bMine := a.AssignedTo(userID), b.AssignedTo(userID)
		if aMine != bMine {
			return aMine
		}
	}
	if la, lb := strings.ToLower(a.Title), strings.ToLower(b.Title); la != lb {
		return la < lb
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.ID < b.ID
}
