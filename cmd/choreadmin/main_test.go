package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/choreplan/internal/database"
	"github.com/dukerupert/choreplan/internal/store"
)

func runAdmin(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := &app{out: &out}
	root := a.rootCmd()
	root.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "missing.env")}, args...))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUserLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "admin.db")
	t.Setenv("CHOREPLAN_DB_PATH", dbPath)

	out, err := runAdmin(t, "user", "create", "Ada@Example.com", "--name", "Ada", "--password", "correct horse")
	require.NoError(t, err)
	assert.Contains(t, out, "created ada@example.com")

	out, err = runAdmin(t, "user", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "ada@example.com")

	_, err = runAdmin(t, "user", "approve", "ada@example.com")
	require.NoError(t, err)

	out, err = runAdmin(t, "user", "pending")
	require.NoError(t, err)
	assert.NotContains(t, out, "ada@example.com")

	_, err = runAdmin(t, "user", "rename", "ada@example.com", "Ada L.")
	require.NoError(t, err)

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	u, err := store.NewUserStore(db).GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.Approved)
	assert.Equal(t, "Ada L.", u.Name)
}

func TestUserCreateValidates(t *testing.T) {
	t.Setenv("CHOREPLAN_DB_PATH", filepath.Join(t.TempDir(), "admin.db"))

	_, err := runAdmin(t, "user", "create", "not-an-email", "--name", "Ada", "--password", "correct horse")
	require.Error(t, err)

	_, err = runAdmin(t, "user", "create", "ada@example.com", "--name", "Ada", "--password", "short")
	require.Error(t, err)

	_, err = runAdmin(t, "user", "approve", "ghost@example.com")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no user"))
}

func TestScheduleCommands(t *testing.T) {
	t.Setenv("CHOREPLAN_DB_PATH", filepath.Join(t.TempDir(), "admin.db"))

	out, err := runAdmin(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = runAdmin(t, "schedule", "ensure")
	require.NoError(t, err)
	assert.Contains(t, out, "created 0 daily schedules")

	out, err = runAdmin(t, "schedule", "pace")
	require.NoError(t, err)
	assert.Contains(t, out, "all tiers on pace")
}
