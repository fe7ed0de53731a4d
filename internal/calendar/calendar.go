// Package calendar computes UTC day and cycle boundaries. Every function is
// pure: callers pass the reference time explicitly.
package calendar

import (
	"fmt"
	"time"

	"github.com/dukerupert/choreplan/internal/frequency"
)

const (
	day  = 24 * time.Hour
	week = 7 * day

	// DayKeyLayout is the canonical YYYY-MM-DD form of a UTC day.
	DayKeyLayout = "2006-01-02"
)

// Range is a half-open [Start, End) interval of UTC instants.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days returns the number of whole UTC days the range spans.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start) / day)
}

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func StartOfTomorrow(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// StartOfWeek returns the Monday that opens t's week.
func StartOfWeek(t time.Time) time.Time {
	start := StartOfDay(t)
	sinceMonday := (int(start.Weekday()) + 6) % 7
	return start.AddDate(0, 0, -sinceMonday)
}

func EndOfWeek(t time.Time) time.Time {
	return StartOfWeek(t).Add(week)
}

// weekNumber counts Monday-anchored weeks from the week holding January 4th
// of t's calendar year, starting at 1.
func weekNumber(t time.Time) int {
	t = t.UTC()
	jan4 := time.Date(t.Year(), time.January, 4, 0, 0, 0, 0, time.UTC)
	diff := StartOfWeek(t).Sub(StartOfWeek(jan4))
	return int(diff/week) + 1
}

// StartOfBiweek pairs weeks 1-2, 3-4, ...: an odd week opens a pair, an even
// week closes the pair opened the week before.
func StartOfBiweek(t time.Time) time.Time {
	start := StartOfWeek(t)
	if weekNumber(t)%2 == 0 {
		return start.Add(-week)
	}
	return start
}

func EndOfBiweek(t time.Time) time.Time {
	return StartOfBiweek(t).Add(2 * week)
}

func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0)
}

// StartOfBimonth pairs months Jan-Feb, Mar-Apr, ..., Nov-Dec.
func StartOfBimonth(t time.Time) time.Time {
	t = t.UTC()
	m := int(t.Month()) - 1
	pair := m - m%2
	return time.Date(t.Year(), time.Month(pair+1), 1, 0, 0, 0, 0, time.UTC)
}

func EndOfBimonth(t time.Time) time.Time {
	return StartOfBimonth(t).AddDate(0, 2, 0)
}

// StartOfHalfYear returns Jan 1 for January-June and Jul 1 otherwise.
func StartOfHalfYear(t time.Time) time.Time {
	t = t.UTC()
	month := time.January
	if t.Month() > time.June {
		month = time.July
	}
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

func EndOfHalfYear(t time.Time) time.Time {
	return StartOfHalfYear(t).AddDate(0, 6, 0)
}

func StartOfYear(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

func EndOfYear(t time.Time) time.Time {
	return StartOfYear(t).AddDate(1, 0, 0)
}

// CycleFor returns the current period of tier relative to now.
func CycleFor(tier frequency.Tier, now time.Time) Range {
	switch tier {
	case frequency.Weekly:
		return Range{Start: StartOfWeek(now), End: EndOfWeek(now)}
	case frequency.Biweekly:
		return Range{Start: StartOfBiweek(now), End: EndOfBiweek(now)}
	case frequency.Monthly:
		return Range{Start: StartOfMonth(now), End: EndOfMonth(now)}
	case frequency.Bimonthly:
		return Range{Start: StartOfBimonth(now), End: EndOfBimonth(now)}
	case frequency.Semiannual:
		return Range{Start: StartOfHalfYear(now), End: EndOfHalfYear(now)}
	case frequency.Yearly:
		return Range{Start: StartOfYear(now), End: EndOfYear(now)}
	default:
		return Range{Start: StartOfDay(now), End: StartOfTomorrow(now)}
	}
}

// DayKey formats t's UTC day as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// TodayKey is DayKey of the day holding now.
func TodayKey(now time.Time) string {
	return DayKey(StartOfDay(now))
}

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	DayKeyLayout,
}

// ParseDate accepts an RFC 3339 timestamp, a zone-less timestamp (read as
// UTC) or a plain YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD or RFC 3339", s)
}

// ParseDay parses s and truncates it to the start of its UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(t), nil
}

// Days lists the start of every UTC day in [from, to).
func Days(from, to time.Time) []time.Time {
	var days []time.Time
	end := StartOfDay(to)
	for d := StartOfDay(from); d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
