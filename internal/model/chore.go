package model

import (
	"time"

	"github.com/dukerupert/choreplan/internal/frequency"
)

type Chore struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description *string        `json:"description"`
	Frequency   frequency.Tier `json:"frequency"`
	Assignees   []UserRef      `json:"assignees"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// AssignedTo reports whether userID is among the chore's assignees.
func (c Chore) AssignedTo(userID string) bool {
	for _, a := range c.Assignees {
		if a.ID == userID {
			return true
		}
	}
	return false
}

// ChoreRef is the short form of a chore embedded in other records.
type ChoreRef struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Frequency frequency.Tier `json:"frequency"`
}

type ChoreDetail struct {
	Chore
	RecentCompletions []CompletionDetail `json:"recentCompletions"`
	CompletionCount   int                `json:"completionCount"`
}

type Assignment struct {
	ChoreID   string    `json:"choreId"`
	UserID    string    `json:"userId"`
	User      UserRef   `json:"user"`
	Chore     ChoreRef  `json:"chore"`
	CreatedAt time.Time `json:"createdAt"`
}

// CandidateChore is a cascade candidate with the facts the ranking needs.
type CandidateChore struct {
	Chore
	LastCompletedAt *time.Time
}

type Completion struct {
	ID          string    `json:"id"`
	ChoreID     string    `json:"choreId"`
	UserID      string    `json:"userId"`
	ScheduleID  *string   `json:"scheduleId"`
	Notes       *string   `json:"notes"`
	CompletedAt time.Time `json:"completedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CompletionDetail struct {
	Completion
	Chore ChoreRef `json:"chore"`
	User  UserRef  `json:"user"`
}
