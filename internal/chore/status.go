package chore

import (
	"time"

	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/model"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Task is a schedule as seen by one user.
type Task struct {
	model.ScheduleDetail
	Status        Status         `json:"status"`
	CompletedBy   *model.UserRef `json:"completedBy"`
	CompletedByMe bool           `json:"completedByMe"`
}

// ComputeStatus reports whether the schedule has been completed by anyone.
func ComputeStatus(s model.ScheduleDetail) Status {
	if s.Completion != nil {
		return StatusCompleted
	}
	return StatusPending
}

// NewTask decorates s with its completion state relative to userID.
func NewTask(s model.ScheduleDetail, userID string) Task {
	t := Task{ScheduleDetail: s, Status: ComputeStatus(s)}
	if s.Completion != nil {
		by := s.Completion.User
		t.CompletedBy = &by
		t.CompletedByMe = s.Completion.UserID == userID
	}
	return t
}

// Tasks converts every schedule for userID.
func Tasks(schedules []model.ScheduleDetail, userID string) []Task {
	out := make([]Task, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, NewTask(s, userID))
	}
	return out
}

// VisibleTo reports whether userID should see the chore in their own list:
// unassigned chores belong to everyone.
func VisibleTo(c model.Chore, userID string) bool {
	return len(c.Assignees) == 0 || c.AssignedTo(userID)
}

// TasksFor keeps the schedules whose chore is visible to userID.
func TasksFor(schedules []model.ScheduleDetail, userID string) []Task {
	out := []Task{}
	for _, s := range schedules {
		if VisibleTo(s.Chore, userID) {
			out = append(out, NewTask(s, userID))
		}
	}
	return out
}

// StreakDays counts consecutive UTC days, ending today, that hold at least
// one completion. A day without completions today means no streak.
func StreakDays(completedAt []time.Time, now time.Time) int {
	days := make(map[string]bool, len(completedAt))
	for _, t := range completedAt {
		days[calendar.DayKey(t)] = true
	}

	streak := 0
	for d := calendar.StartOfDay(now); days[calendar.DayKey(d)]; d = d.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}
