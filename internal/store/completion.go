package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/model"
)

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

type NewCompletion struct {
	ChoreID     string
	UserID      string
	ScheduleID  *string
	Notes       *string
	CompletedAt time.Time
}

type CompletionFilter struct {
	ChoreID string
	UserID  string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.Completion, error) {
	var c model.Completion
	var scheduleID, notes sql.NullString
	var completedAt, createdAt string
	err := scanner.Scan(&c.ID, &c.ChoreID, &c.UserID, &scheduleID, &notes, &completedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	c.ScheduleID = stringPtr(scheduleID)
	c.Notes = stringPtr(notes)
	if c.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &c, nil
}

const completionCols = `cc.id, cc.chore_id, cc.user_id, cc.schedule_id, cc.notes, cc.completed_at, cc.created_at`

// Detail columns follow completionCols: chore ref, then user ref.
const completionDetailCols = completionCols + `, c.title, c.frequency, u.name, u.image`

const completionDetailFrom = ` FROM chore_completions cc
	JOIN chores c ON c.id = cc.chore_id
	JOIN users u ON u.id = cc.user_id`

func scanCompletionDetail(scanner interface{ Scan(...any) error }) (*model.CompletionDetail, error) {
	var d model.CompletionDetail
	var scheduleID, notes, image sql.NullString
	var completedAt, createdAt string
	err := scanner.Scan(
		&d.ID, &d.ChoreID, &d.UserID, &scheduleID, &notes, &completedAt, &createdAt,
		&d.Chore.Title, &d.Chore.Frequency, &d.User.Name, &image,
	)
	if err != nil {
		return nil, err
	}
	d.ScheduleID = stringPtr(scheduleID)
	d.Notes = stringPtr(notes)
	d.Chore.ID = d.ChoreID
	d.User.ID = d.UserID
	d.User.Image = stringPtr(image)
	if d.CompletedAt, err = parseTime(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &d, nil
}

// InsertForSchedule records a completion for a schedule unless one already
// exists. It returns whichever row holds the schedule; created is true only
// when this call inserted it.
func (s *CompletionStore) InsertForSchedule(ctx context.Context, in NewCompletion) (c *model.Completion, created bool, err error) {
	if in.ScheduleID == nil {
		return nil, false, fmt.Errorf("insert completion: schedule id required")
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_completions (id, chore_id, user_id, schedule_id, notes, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (schedule_id) DO NOTHING`,
		newID(), in.ChoreID, in.UserID, *in.ScheduleID, nullString(in.Notes), formatTime(in.CompletedAt),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	c, err = s.GetByScheduleID(ctx, *in.ScheduleID)
	if err != nil {
		return nil, false, err
	}
	if c == nil {
		// The schedule was deleted between insert and read.
		return nil, false, fmt.Errorf("read completion: schedule %s vanished", *in.ScheduleID)
	}
	return c, n > 0, nil
}

// InsertAdHoc records a completion that is not tied to a schedule.
func (s *CompletionStore) InsertAdHoc(ctx context.Context, in NewCompletion) (*model.Completion, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_completions (id, chore_id, user_id, notes, completed_at) VALUES (?, ?, ?, ?, ?)`,
		id, in.ChoreID, in.UserID, nullString(in.Notes), formatTime(in.CompletedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CompletionStore) GetByID(ctx context.Context, id string) (*model.Completion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+` FROM chore_completions cc WHERE cc.id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) GetByScheduleID(ctx context.Context, scheduleID string) (*model.Completion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+` FROM chore_completions cc WHERE cc.schedule_id = ?`, scheduleID)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion by schedule: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) GetDetail(ctx context.Context, id string) (*model.CompletionDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionDetailCols+completionDetailFrom+` WHERE cc.id = ?`, id)
	d, err := scanCompletionDetail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion detail: %w", err)
	}
	return d, nil
}

// DeleteOwn removes the completion linked to scheduleID if userID recorded
// it, returning the removed row or nil when nothing matched.
func (s *CompletionStore) DeleteOwn(ctx context.Context, scheduleID, userID string) (*model.Completion, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM chore_completions WHERE schedule_id = ? AND user_id = ?
		 RETURNING id, chore_id, user_id, schedule_id, notes, completed_at, created_at`,
		scheduleID, userID,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete completion: %w", err)
	}
	return c, nil
}

func completionWhere(f CompletionFilter) (string, []any) {
	var where []string
	var args []any
	if f.ChoreID != "" {
		where = append(where, `cc.chore_id = ?`)
		args = append(args, f.ChoreID)
	}
	if f.UserID != "" {
		where = append(where, `cc.user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.From != nil {
		where = append(where, `cc.completed_at >= ?`)
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, `cc.completed_at <= ?`)
		args = append(args, formatTime(*f.To))
	}
	if len(where) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(where, ` AND `), args
}

// List returns completions newest first.
func (s *CompletionStore) List(ctx context.Context, f CompletionFilter) ([]model.CompletionDetail, error) {
	where, args := completionWhere(f)
	query := `SELECT ` + completionDetailCols + completionDetailFrom + where + ` ORDER BY cc.completed_at DESC, cc.id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	out := []model.CompletionDetail{}
	for rows.Next() {
		d, err := scanCompletionDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Count ignores the filter's limit and offset.
func (s *CompletionStore) Count(ctx context.Context, f CompletionFilter) (int, error) {
	where, args := completionWhere(f)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chore_completions cc`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

// CompletedTimes returns the user's completion times at or after since,
// newest first.
func (s *CompletionStore) CompletedTimes(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT completed_at FROM chore_completions WHERE user_id = ? AND completed_at >= ? ORDER BY completed_at DESC`,
		userID, formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list completion times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan completion time: %w", err)
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// loadCompletionsBySchedule maps schedule id to its completion.
func loadCompletionsBySchedule(ctx context.Context, q queryer, scheduleIDs []string) (map[string]model.CompletionDetail, error) {
	out := make(map[string]model.CompletionDetail)
	if len(scheduleIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+completionDetailCols+completionDetailFrom+
			` WHERE cc.schedule_id IN (`+placeholders(len(scheduleIDs))+`)`,
		stringArgs(scheduleIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("load schedule completions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanCompletionDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		if d.ScheduleID != nil {
			out[*d.ScheduleID] = *d
		}
	}
	return out, rows.Err()
}
