package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/choreplan/internal/database"
	"github.com/dukerupert/choreplan/internal/frequency"
	"github.com/dukerupert/choreplan/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustUser(t *testing.T, us *UserStore, email, name string) *model.User {
	t.Helper()
	u, err := us.Create(context.Background(), email, name, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustChore(t *testing.T, cs *ChoreStore, title string, tier frequency.Tier, assignees ...string) *model.Chore {
	t.Helper()
	c, err := cs.Create(context.Background(), ChoreInput{Title: title, Frequency: tier, AssigneeIDs: assignees})
	if err != nil {
		t.Fatalf("create chore %s: %v", title, err)
	}
	return c
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return v
}
