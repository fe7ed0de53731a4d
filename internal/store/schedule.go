package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// NewSchedule is one row to create. ScheduledFor is truncated to its UTC day.
type NewSchedule struct {
	ChoreID      string
	ScheduledFor time.Time
	SlotType     frequency.Tier
	Suggested    bool
}

type ScheduleFilter struct {
	From          *time.Time
	To            *time.Time
	SlotType      frequency.Tier
	UserID        string
	IncludeHidden bool
	Limit         int
}

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.Schedule, error) {
	var s model.Schedule
	var scheduledFor, createdAt string
	err := scanner.Scan(&s.ID, &s.ChoreID, &scheduledFor, &s.SlotType, &s.Suggested, &s.Hidden, &createdAt)
	if err != nil {
		return nil, err
	}
	if s.ScheduledFor, err = parseDay(scheduledFor); err != nil {
		return nil, fmt.Errorf("parse scheduled_for: %w", err)
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &s, nil
}

const scheduleCols = `s.id, s.chore_id, s.scheduled_for, s.slot_type, s.suggested, s.hidden, s.created_at`

// InsertMissing creates every row whose (chore, day) pair is not yet taken,
// in one transaction, and returns how many rows were actually inserted.
func (s *ScheduleStore) InsertMissing(ctx context.Context, rows []NewSchedule) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var created int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, r := range rows {
			n, err := insertSchedule(ctx, tx, r)
			if err != nil {
				return err
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Upsert returns the schedule for (chore, day), creating it when absent.
// An existing row is un-hidden, and a manual request clears its suggested
// flag. created reports whether a new row was inserted.
func (s *ScheduleStore) Upsert(ctx context.Context, r NewSchedule) (sched *model.Schedule, created bool, err error) {
	day := formatDay(r.ScheduledFor)
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		n, err := insertSchedule(ctx, tx, r)
		if err != nil {
			return err
		}
		created = n > 0
		if !created {
			q := `UPDATE schedules SET hidden = 0`
			if !r.Suggested {
				q += `, suggested = 0`
			}
			q += ` WHERE chore_id = ? AND scheduled_for = ?`
			if _, err := tx.ExecContext(ctx, q, r.ChoreID, day); err != nil {
				return fmt.Errorf("reclaim schedule: %w", err)
			}
		}
		row := tx.QueryRowContext(ctx,
			`SELECT `+scheduleCols+` FROM schedules s WHERE s.chore_id = ? AND s.scheduled_for = ?`,
			r.ChoreID, day,
		)
		sched, err = scanSchedule(row)
		if err != nil {
			return fmt.Errorf("read schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return sched, created, nil
}

func insertSchedule(ctx context.Context, tx *sql.Tx, r NewSchedule) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO schedules (id, chore_id, scheduled_for, slot_type, suggested)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (chore_id, scheduled_for) DO NOTHING`,
		newID(), r.ChoreID, formatDay(r.ScheduledFor), r.SlotType, r.Suggested,
	)
	if err != nil {
		return 0, fmt.Errorf("insert schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *ScheduleStore) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM schedules s WHERE s.id = ?`, id)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sched, nil
}

// GetByChoreDay returns the chore's schedule on day, hidden or not.
func (s *ScheduleStore) GetByChoreDay(ctx context.Context, choreID string, day time.Time) (*model.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules s WHERE s.chore_id = ? AND s.scheduled_for = ?`,
		choreID, formatDay(day),
	)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule by chore day: %w", err)
	}
	return sched, nil
}

// Delete reports whether a row was removed. Linked completions survive with
// their schedule reference cleared.
func (s *ScheduleStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Hide marks a schedule hidden and returns it, or nil if it does not exist.
func (s *ScheduleStore) Hide(ctx context.Context, id string) (*model.Schedule, error) {
	if _, err := s.db.ExecContext(ctx, `UPDATE schedules SET hidden = 1 WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("hide schedule: %w", err)
	}
	return s.GetByID(ctx, id)
}

// ScheduledChoreIDs returns the distinct chores of the given frequency that
// hold a visible schedule within r, whatever slot they were placed in.
func (s *ScheduleStore) ScheduledChoreIDs(ctx context.Context, tier frequency.Tier, r calendar.Range) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT s.chore_id FROM schedules s
		 JOIN chores c ON c.id = s.chore_id
		 WHERE c.frequency = ? AND s.hidden = 0 AND s.scheduled_for >= ? AND s.scheduled_for < ?
		 ORDER BY s.chore_id`,
		tier, formatDay(r.Start), formatDay(r.End),
	)
	if err != nil {
		return nil, fmt.Errorf("list scheduled chores: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chore id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns schedules ascending by day with the chore, its assignees and
// any linked completion attached.
func (s *ScheduleStore) List(ctx context.Context, f ScheduleFilter) ([]model.ScheduleDetail, error) {
	var where []string
	var args []any
	if f.From != nil {
		where = append(where, `s.scheduled_for >= ?`)
		args = append(args, formatDay(*f.From))
	}
	if f.To != nil {
		where = append(where, `s.scheduled_for <= ?`)
		args = append(args, formatDay(*f.To))
	}
	if f.SlotType.Valid() {
		where = append(where, `s.slot_type = ?`)
		args = append(args, f.SlotType)
	}
	if f.UserID != "" {
		where = append(where, `EXISTS (SELECT 1 FROM chore_assignments a WHERE a.chore_id = s.chore_id AND a.user_id = ?)`)
		args = append(args, f.UserID)
	}
	if !f.IncludeHidden {
		where = append(where, `s.hidden = 0`)
	}

	query := `SELECT ` + scheduleCols + `, ` + choreCols + `
		FROM schedules s JOIN chores c ON c.id = s.chore_id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY s.scheduled_for ASC, c.title COLLATE NOCASE ASC, s.id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	details, err := s.queryDetails(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}

	choreIDs := make([]string, 0, len(details))
	seen := make(map[string]bool)
	scheduleIDs := make([]string, len(details))
	for i, d := range details {
		scheduleIDs[i] = d.ID
		if !seen[d.ChoreID] {
			seen[d.ChoreID] = true
			choreIDs = append(choreIDs, d.ChoreID)
		}
	}

	assignees, err := loadAssignees(ctx, s.db, choreIDs)
	if err != nil {
		return nil, err
	}
	completions, err := loadCompletionsBySchedule(ctx, s.db, scheduleIDs)
	if err != nil {
		return nil, err
	}
	for i := range details {
		if refs, ok := assignees[details[i].ChoreID]; ok {
			details[i].Chore.Assignees = refs
		}
		if c, ok := completions[details[i].ID]; ok {
			details[i].Completion = &c
		}
	}
	return details, nil
}

func (s *ScheduleStore) queryDetails(ctx context.Context, query string, args ...any) ([]model.ScheduleDetail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	details := []model.ScheduleDetail{}
	for rows.Next() {
		var d model.ScheduleDetail
		var scheduledFor, createdAt string
		var description sql.NullString
		var choreCreated, choreUpdated string
		err := rows.Scan(
			&d.ID, &d.ChoreID, &scheduledFor, &d.SlotType, &d.Suggested, &d.Hidden, &createdAt,
			&d.Chore.ID, &d.Chore.Title, &description, &d.Chore.Frequency, &choreCreated, &choreUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if d.ScheduledFor, err = parseDay(scheduledFor); err != nil {
			return nil, fmt.Errorf("parse scheduled_for: %w", err)
		}
		if d.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if d.Chore.CreatedAt, err = parseTime(choreCreated); err != nil {
			return nil, fmt.Errorf("parse chore created_at: %w", err)
		}
		if d.Chore.UpdatedAt, err = parseTime(choreUpdated); err != nil {
			return nil, fmt.Errorf("parse chore updated_at: %w", err)
		}
		d.Chore.Description = stringPtr(description)
		d.Chore.Assignees = []model.UserRef{}
		details = append(details, d)
	}
	return details, rows.Err()
}
