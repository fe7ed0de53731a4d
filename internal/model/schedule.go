package model

import (
	"time"

	"github.com/dukerupert/choreplan/internal/frequency"
)

// Schedule places a chore on a UTC day. SlotType is the tier the slot was
// created under and may be finer than the chore's own frequency.
type Schedule struct {
	ID           string         `json:"id"`
	ChoreID      string         `json:"choreId"`
	ScheduledFor time.Time      `json:"scheduledFor"`
	SlotType     frequency.Tier `json:"slotType"`
	Suggested    bool           `json:"suggested"`
	Hidden       bool           `json:"hidden"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type ScheduleDetail struct {
	Schedule
	Chore      Chore             `json:"chore"`
	Completion *CompletionDetail `json:"completion"`
}
