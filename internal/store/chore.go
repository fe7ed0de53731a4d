package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
)

type ChoreStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db, now: time.Now}
}

type ChoreInput struct {
	Title       string
	Description *string
	Frequency   frequency.Tier
	AssigneeIDs []string
}

// ChoreUpdate is a partial update; unset fields keep their stored values.
type ChoreUpdate struct {
	Title          *string
	Frequency      *frequency.Tier
	Description    *string
	DescriptionSet bool
	AssigneeIDs    []string
	AssigneesSet   bool
}

type ChoreFilter struct {
	Frequency frequency.Tier
	Search    string
}

// --- Chore methods ---

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var description sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(&c.ID, &c.Title, &description, &c.Frequency, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Description = stringPtr(description)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	c.Assignees = []model.UserRef{}
	return &c, nil
}

const choreCols = `c.id, c.title, c.description, c.frequency, c.created_at, c.updated_at`

func (s *ChoreStore) Create(ctx context.Context, in ChoreInput) (*model.Chore, error) {
	id := newID()
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chores (id, title, description, frequency) VALUES (?, ?, ?, ?)`,
			id, in.Title, nullString(in.Description), in.Frequency,
		)
		if err != nil {
			return fmt.Errorf("insert chore: %w", err)
		}
		return insertAssignees(ctx, tx, id, in.AssigneeIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id string) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores c WHERE c.id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}

	assignees, err := loadAssignees(ctx, s.db, []string{id})
	if err != nil {
		return nil, err
	}
	if refs, ok := assignees[id]; ok {
		c.Assignees = refs
	}
	return c, nil
}

// List returns chores newest first, optionally narrowed to one frequency
// and a case-insensitive title search.
func (s *ChoreStore) List(ctx context.Context, f ChoreFilter) ([]model.Chore, error) {
	var where []string
	var args []any
	if f.Frequency.Valid() {
		where = append(where, `c.frequency = ?`)
		args = append(args, f.Frequency)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		where = append(where, `c.title LIKE ? ESCAPE '\' COLLATE NOCASE`)
		args = append(args, "%"+escapeLike(search)+"%")
	}

	query := `SELECT ` + choreCols + ` FROM chores c`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY c.created_at DESC, c.title ASC`

	chores, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachAssignees(ctx, chores); err != nil {
		return nil, err
	}
	return chores, nil
}

// ListByTitle returns every chore ordered by title, for pickers.
func (s *ChoreStore) ListByTitle(ctx context.Context) ([]model.Chore, error) {
	chores, err := s.query(ctx, `SELECT `+choreCols+` FROM chores c ORDER BY c.title COLLATE NOCASE ASC, c.id ASC`)
	if err != nil {
		return nil, err
	}
	if err := s.attachAssignees(ctx, chores); err != nil {
		return nil, err
	}
	return chores, nil
}

func (s *ChoreStore) query(ctx context.Context, query string, args ...any) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) attachAssignees(ctx context.Context, chores []model.Chore) error {
	if len(chores) == 0 {
		return nil
	}
	ids := make([]string, len(chores))
	for i := range chores {
		ids[i] = chores[i].ID
	}
	assignees, err := loadAssignees(ctx, s.db, ids)
	if err != nil {
		return err
	}
	for i := range chores {
		if refs, ok := assignees[chores[i].ID]; ok {
			chores[i].Assignees = refs
		}
	}
	return nil
}

// Update applies a partial update. Replacing the assignee set deletes and
// re-inserts inside the same transaction as the field changes.
func (s *ChoreStore) Update(ctx context.Context, id string, upd ChoreUpdate) (*model.Chore, error) {
	var sets []string
	var args []any
	if upd.Title != nil {
		sets = append(sets, `title = ?`)
		args = append(args, *upd.Title)
	}
	if upd.Frequency != nil {
		sets = append(sets, `frequency = ?`)
		args = append(args, *upd.Frequency)
	}
	if upd.DescriptionSet {
		sets = append(sets, `description = ?`)
		args = append(args, nullString(upd.Description))
	}
	sets = append(sets, `updated_at = ?`)
	args = append(args, formatTime(s.now()))
	args = append(args, id)

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE chores SET `+strings.Join(sets, `, `)+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("update chore: %w", err)
		}
		if !upd.AssigneesSet {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chore_assignments WHERE chore_id = ?`, id); err != nil {
			return fmt.Errorf("clear assignees: %w", err)
		}
		return insertAssignees(ctx, tx, id, upd.AssigneeIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes the chore and, through foreign keys, its assignments,
// schedules and completions. It reports whether a row was removed.
func (s *ChoreStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete chore: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *ChoreStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chores`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chores: %w", err)
	}
	return n, nil
}

func (s *ChoreStore) CountByFrequency(ctx context.Context, tier frequency.Tier) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chores WHERE frequency = ?`, tier).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chores by frequency: %w", err)
	}
	return n, nil
}

func (s *ChoreStore) ListIDsByFrequency(ctx context.Context, tier frequency.Tier) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chores WHERE frequency = ? ORDER BY id`, tier)
	if err != nil {
		return nil, fmt.Errorf("list chore ids: %w", err)
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

// ListCandidates returns chores of tier that are not in exclude, each with
// its assignees and most recent completion time.
func (s *ChoreStore) ListCandidates(ctx context.Context, tier frequency.Tier, exclude []string) ([]model.CandidateChore, error) {
	query := `SELECT ` + choreCols + `, (SELECT MAX(cc.completed_at) FROM chore_completions cc WHERE cc.chore_id = c.id)
		FROM chores c WHERE c.frequency = ?`
	args := []any{tier}
	if len(exclude) > 0 {
		query += ` AND c.id NOT IN (` + placeholders(len(exclude)) + `)`
		args = append(args, stringArgs(exclude)...)
	}
	query += ` ORDER BY c.title ASC`

	candidates, err := s.queryCandidates(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}
	assignees, err := loadAssignees(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if refs, ok := assignees[candidates[i].ID]; ok {
			candidates[i].Assignees = refs
		}
	}
	return candidates, nil
}

func (s *ChoreStore) queryCandidates(ctx context.Context, query string, args ...any) ([]model.CandidateChore, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []model.CandidateChore
	for rows.Next() {
		var c model.CandidateChore
		var description, lastCompleted sql.NullString
		var createdAt, updatedAt string
		err := rows.Scan(&c.ID, &c.Title, &description, &c.Frequency, &createdAt, &updatedAt, &lastCompleted)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Description = stringPtr(description)
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		if lastCompleted.Valid {
			t, err := parseTime(lastCompleted.String)
			if err != nil {
				return nil, fmt.Errorf("parse last completion: %w", err)
			}
			c.LastCompletedAt = &t
		}
		c.Assignees = []model.UserRef{}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Assignment methods ---

// Assign links a user to a chore. created is false when the pair already existed.
func (s *ChoreStore) Assign(ctx context.Context, choreID, userID string) (a *model.Assignment, created bool, err error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_assignments (chore_id, user_id) VALUES (?, ?) ON CONFLICT (chore_id, user_id) DO NOTHING`,
		choreID, userID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert assignment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	a, err = s.GetAssignment(ctx, choreID, userID)
	return a, n > 0, err
}

func (s *ChoreStore) GetAssignment(ctx context.Context, choreID, userID string) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT a.chore_id, a.user_id, a.created_at, u.name, u.image, c.title, c.frequency
		 FROM chore_assignments a
		 JOIN users u ON u.id = a.user_id
		 JOIN chores c ON c.id = a.chore_id
		 WHERE a.chore_id = ? AND a.user_id = ?`,
		choreID, userID,
	)
	var a model.Assignment
	var createdAt string
	var image sql.NullString
	err := row.Scan(&a.ChoreID, &a.UserID, &createdAt, &a.User.Name, &image, &a.Chore.Title, &a.Chore.Frequency)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	a.User.ID = a.UserID
	a.User.Image = stringPtr(image)
	a.Chore.ID = a.ChoreID
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &a, nil
}

// Unassign reports whether an assignment was removed.
func (s *ChoreStore) Unassign(ctx context.Context, choreID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM chore_assignments WHERE chore_id = ? AND user_id = ?`,
		choreID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete assignment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func insertAssignees(ctx context.Context, tx *sql.Tx, choreID string, userIDs []string) error {
	for _, uid := range userIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chore_assignments (chore_id, user_id) VALUES (?, ?) ON CONFLICT (chore_id, user_id) DO NOTHING`,
			choreID, uid,
		)
		if err != nil {
			return fmt.Errorf("insert assignee %s: %w", uid, err)
		}
	}
	return nil
}

// loadAssignees maps chore id to its assignees ordered by name.
func loadAssignees(ctx context.Context, q queryer, choreIDs []string) (map[string][]model.UserRef, error) {
	out := make(map[string][]model.UserRef)
	if len(choreIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT a.chore_id, u.id, u.name, u.image
		 FROM chore_assignments a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.chore_id IN (`+placeholders(len(choreIDs))+`)
		 ORDER BY u.name ASC, u.id ASC`,
		stringArgs(choreIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("load assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var choreID string
		var ref model.UserRef
		var image sql.NullString
		if err := rows.Scan(&choreID, &ref.ID, &ref.Name, &image); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		ref.Image = stringPtr(image)
		out[choreID] = append(out[choreID], ref)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
