package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/choreplan/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var image sql.NullString
	var createdAt string
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &image, &u.PasswordHash, &u.Approved, &createdAt)
	if err != nil {
		return nil, err
	}
	u.Image = stringPtr(image)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &u, nil
}

const userCols = `id, email, name, image, password_hash, approved, created_at`

func (s *UserStore) Create(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash) VALUES (?, ?, ?, ?)`,
		id, strings.TrimSpace(email), strings.TrimSpace(name), passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, strings.TrimSpace(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	return s.list(ctx, `SELECT `+userCols+` FROM users ORDER BY name ASC, email ASC`)
}

func (s *UserStore) ListApproved(ctx context.Context) ([]model.User, error) {
	return s.list(ctx, `SELECT `+userCols+` FROM users WHERE approved = 1 ORDER BY name ASC, email ASC`)
}

func (s *UserStore) ListPending(ctx context.Context) ([]model.User, error) {
	return s.list(ctx, `SELECT `+userCols+` FROM users WHERE approved = 0 ORDER BY created_at ASC`)
}

func (s *UserStore) list(ctx context.Context, query string) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetApproved grants or revokes access. It returns nil when the user does not exist.
func (s *UserStore) SetApproved(ctx context.Context, id string, approved bool) (*model.User, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET approved = ? WHERE id = ?`, approved, id)
	if err != nil {
		return nil, fmt.Errorf("set approved: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id, name string, image *string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, image = ? WHERE id = ?`,
		strings.TrimSpace(name), nullString(image), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
