package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/frequency"
)

type PaceWarning struct {
	SourceTier      frequency.Tier `json:"sourceFrequency"`
	TotalChores     int            `json:"totalChores"`
	ScheduledChores int            `json:"scheduledChores"`
	RemainingChores int            `json:"remainingChores"`
	RemainingSlots  int            `json:"remainingSlots"`
	Cycle           calendar.Range `json:"cycle"`
	Message         string         `json:"message"`
}

// CheckPace reports every cascade source tier whose unscheduled chores
// outnumber the slots left in its cycle. It never writes.
func (e *Engine) CheckPace(ctx context.Context, now time.Time) ([]PaceWarning, error) {
	warnings := []PaceWarning{}
	for _, tier := range frequency.CascadeSources() {
		cycle := calendar.CycleFor(tier, now)

		total, err := e.chores.CountByFrequency(ctx, tier)
		if err != nil {
			return nil, fmt.Errorf("count %s chores: %w", tier, err)
		}
		scheduled, err := e.schedules.ScheduledChoreIDs(ctx, tier, cycle)
		if err != nil {
			return nil, fmt.Errorf("load scheduled %s chores: %w", tier, err)
		}

		remaining := max(0, total-len(scheduled))
		slots := RemainingSlots(tier, now)
		if remaining <= slots {
			continue
		}
		warnings = append(warnings, PaceWarning{
			SourceTier:      tier,
			TotalChores:     total,
			ScheduledChores: len(scheduled),
			RemainingChores: remaining,
			RemainingSlots:  slots,
			Cycle:           cycle,
			Message: fmt.Sprintf("Behind pace for %s: %d remaining with only %d slots left in this cycle.",
				tier, remaining, slots),
		})
	}
	return warnings, nil
}

// RemainingSlots estimates the scheduling opportunities left in tier's
// current cycle, counting the unit that holds now: days for WEEKLY, weeks
// for BIWEEKLY and MONTHLY, months for BIMONTHLY and YEARLY, bimonths for
// SEMIANNUAL.
func RemainingSlots(tier frequency.Tier, now time.Time) int {
	now = now.UTC()
	today := calendar.StartOfDay(now)
	daysLeft := func(end time.Time) int {
		return int(end.Sub(today) / (24 * time.Hour))
	}

	switch tier {
	case frequency.Weekly:
		return daysLeft(calendar.EndOfWeek(now))
	case frequency.Biweekly:
		return ceilDiv(daysLeft(calendar.EndOfBiweek(now)), 7)
	case frequency.Monthly:
		return max(1, ceilDiv(daysLeft(calendar.EndOfMonth(now)), 7))
	case frequency.Bimonthly:
		return 2 - int(now.Month()-calendar.StartOfBimonth(now).Month())
	case frequency.Semiannual:
		return 3 - int(now.Month()-calendar.StartOfHalfYear(now).Month())/2
	case frequency.Yearly:
		return 12 - int(now.Month()) + 1
	default:
		return 0
	}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
