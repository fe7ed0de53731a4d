package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const gridCells = 42

// GridCell is one day of a month view.
type GridCell struct {
	DayKey  string    `json:"dayKey"`
	Date    time.Time `json:"date"`
	InMonth bool      `json:"inMonth"`
}

// MonthGrid lays out six Monday-first weeks covering the given month.
func MonthGrid(year int, month time.Month) []GridCell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := StartOfWeek(first)

	cells := make([]GridCell, 0, gridCells)
	for i := 0; i < gridCells; i++ {
		d := start.AddDate(0, 0, i)
		cells = append(cells, GridCell{
			DayKey:  DayKey(d),
			Date:    d,
			InMonth: d.Month() == month,
		})
	}
	return cells
}

// MonthTitle renders e.g. "February 2026".
func MonthTitle(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

var monthParam = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// ParseMonth parses a YYYY-MM query value.
func ParseMonth(s string) (int, time.Month, error) {
	m := monthParam.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("parse month %q: expected YYYY-MM", s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("parse month %q: month out of range", s)
	}
	return year, time.Month(month), nil
}
