package store

import (
	"context"
	"testing"

	"github.com/dukerupert/choreplan/internal/frequency"
)

func TestChoreCRUD(t *testing.T) {
	db := setupTestDB(t)
	cs, us := NewChoreStore(db), NewUserStore(db)
	ctx := context.Background()

	alice := mustUser(t, us, "alice@example.com", "Alice")
	desc := "Under the sink too"

	// Create
	c, err := cs.Create(ctx, ChoreInput{
		Title:       "Mop floors",
		Description: &desc,
		Frequency:   frequency.Weekly,
		AssigneeIDs: []string{alice.ID},
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	if c.Title != "Mop floors" || c.Frequency != frequency.Weekly {
		t.Errorf("got %+v", c)
	}
	if c.Description == nil || *c.Description != desc {
		t.Errorf("description = %v, want %q", c.Description, desc)
	}
	if len(c.Assignees) != 1 || c.Assignees[0].ID != alice.ID {
		t.Errorf("assignees = %+v, want alice", c.Assignees)
	}

	// Update title only
	title := "Mop all floors"
	updated, err := cs.Update(ctx, c.ID, ChoreUpdate{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}
	if updated.Description == nil || len(updated.Assignees) != 1 {
		t.Error("partial update should keep description and assignees")
	}

	// Clear description and assignees
	updated, err = cs.Update(ctx, c.ID, ChoreUpdate{DescriptionSet: true, AssigneesSet: true})
	if err != nil {
		t.Fatalf("update clear: %v", err)
	}
	if updated.Description != nil {
		t.Error("expected description cleared")
	}
	if len(updated.Assignees) != 0 {
		t.Errorf("assignees = %+v, want none", updated.Assignees)
	}

	// Delete
	ok, err := cs.Delete(ctx, c.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Error("expected delete to report a removed row")
	}
	got, err := cs.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
	ok, _ = cs.Delete(ctx, c.ID)
	if ok {
		t.Error("second delete should report nothing removed")
	}
}

func TestChoreListFilters(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)
	ctx := context.Background()

	mustChore(t, cs, "Dishes", frequency.Daily)
	mustChore(t, cs, "Vacuum", frequency.Weekly)
	mustChore(t, cs, "Clean oven", frequency.Monthly)
	mustChore(t, cs, "100% tidy", frequency.Weekly)

	all, err := cs.List(ctx, ChoreFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}

	weekly, _ := cs.List(ctx, ChoreFilter{Frequency: frequency.Weekly})
	if len(weekly) != 2 {
		t.Errorf("weekly = %d, want 2", len(weekly))
	}

	search, _ := cs.List(ctx, ChoreFilter{Search: "CLEAN"})
	if len(search) != 1 || search[0].Title != "Clean oven" {
		t.Errorf("search = %+v, want Clean oven", search)
	}

	pct, _ := cs.List(ctx, ChoreFilter{Search: "%"})
	if len(pct) != 1 || pct[0].Title != "100% tidy" {
		t.Errorf("literal percent search = %+v", pct)
	}

	n, _ := cs.CountByFrequency(ctx, frequency.Weekly)
	if n != 2 {
		t.Errorf("count weekly = %d, want 2", n)
	}
	total, _ := cs.Count(ctx)
	if total != 4 {
		t.Errorf("count = %d, want 4", total)
	}
}

func TestChoreAssignments(t *testing.T) {
	db := setupTestDB(t)
	cs, us := NewChoreStore(db), NewUserStore(db)
	ctx := context.Background()

	bob := mustUser(t, us, "bob@example.com", "Bob")
	c := mustChore(t, cs, "Laundry", frequency.Weekly)

	a, created, err := cs.Assign(ctx, c.ID, bob.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !created {
		t.Error("first assign should create")
	}
	if a.User.Name != "Bob" || a.Chore.Title != "Laundry" {
		t.Errorf("assignment = %+v", a)
	}

	_, created, err = cs.Assign(ctx, c.ID, bob.ID)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if created {
		t.Error("duplicate assign should not create")
	}

	removed, err := cs.Unassign(ctx, c.ID, bob.ID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if !removed {
		t.Error("expected unassign to remove")
	}
	removed, _ = cs.Unassign(ctx, c.ID, bob.ID)
	if removed {
		t.Error("second unassign should find nothing")
	}
}

func TestChoreListCandidates(t *testing.T) {
	db := setupTestDB(t)
	cs, us, comps := NewChoreStore(db), NewUserStore(db), NewCompletionStore(db)
	ctx := context.Background()

	alice := mustUser(t, us, "alice@example.com", "Alice")
	a := mustChore(t, cs, "A", frequency.Weekly, alice.ID)
	b := mustChore(t, cs, "B", frequency.Weekly)
	mustChore(t, cs, "Daily", frequency.Daily)

	when := mustTime(t, "2025-01-02T08:00:00Z")
	if _, err := comps.InsertAdHoc(ctx, NewCompletion{ChoreID: a.ID, UserID: alice.ID, CompletedAt: when}); err != nil {
		t.Fatalf("insert completion: %v", err)
	}

	cands, err := cs.ListCandidates(ctx, frequency.Weekly, []string{b.ID})
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	if len(cands) != 1 || cands[0].ID != a.ID {
		t.Fatalf("candidates = %+v, want only A", cands)
	}
	if cands[0].LastCompletedAt == nil || !cands[0].LastCompletedAt.Equal(when) {
		t.Errorf("last completed = %v, want %v", cands[0].LastCompletedAt, when)
	}
	if len(cands[0].Assignees) != 1 {
		t.Errorf("assignees = %+v", cands[0].Assignees)
	}

	all, _ := cs.ListCandidates(ctx, frequency.Weekly, nil)
	if len(all) != 2 {
		t.Errorf("candidates without exclusions = %d, want 2", len(all))
	}
	for _, c := range all {
		if c.ID == b.ID && c.LastCompletedAt != nil {
			t.Error("B has never been completed")
		}
	}
}
