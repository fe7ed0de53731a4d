package store

import (
	"context"
	"testing"

	"github.com/dukerupert/choreplan/internal/frequency"
)

func TestCompletionInsertForScheduleOnce(t *testing.T) {
	db := setupTestDB(t)
	cs, us, ss, comps := NewChoreStore(db), NewUserStore(db), NewScheduleStore(db), NewCompletionStore(db)
	ctx := context.Background()

	alice := mustUser(t, us, "alice@example.com", "Alice")
	bob := mustUser(t, us, "bob@example.com", "Bob")
	c := mustChore(t, cs, "Dishes", frequency.Daily)
	sched, _, _ := ss.Upsert(ctx, NewSchedule{ChoreID: c.ID, ScheduledFor: mustTime(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Daily})

	first, created, err := comps.InsertForSchedule(ctx, NewCompletion{
		ChoreID: c.ID, UserID: alice.ID, ScheduleID: &sched.ID, CompletedAt: mustTime(t, "2026-02-07T09:00:00Z"),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !created {
		t.Error("first completion should be created")
	}

	second, created, err := comps.InsertForSchedule(ctx, NewCompletion{
		ChoreID: c.ID, UserID: bob.ID, ScheduleID: &sched.ID, CompletedAt: mustTime(t, "2026-02-07T10:00:00Z"),
	})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created {
		t.Error("second completion should not be created")
	}
	if second.ID != first.ID || second.UserID != alice.ID {
		t.Errorf("second = %+v, want alice's row", second)
	}

	list, _ := ss.List(ctx, ScheduleFilter{})
	if list[0].Completion == nil || list[0].Completion.User.Name != "Alice" {
		t.Errorf("schedule completion = %+v", list[0].Completion)
	}
}

func TestCompletionDeleteOwnOnly(t *testing.T) {
	db := setupTestDB(t)
	cs, us, ss, comps := NewChoreStore(db), NewUserStore(db), NewScheduleStore(db), NewCompletionStore(db)
	ctx := context.Background()

	alice := mustUser(t, us, "alice@example.com", "Alice")
	bob := mustUser(t, us, "bob@example.com", "Bob")
	c := mustChore(t, cs, "Dishes", frequency.Daily)
	sched, _, _ := ss.Upsert(ctx, NewSchedule{ChoreID: c.ID, ScheduledFor: mustTime(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Daily})
	comps.InsertForSchedule(ctx, NewCompletion{ChoreID: c.ID, UserID: alice.ID, ScheduleID: &sched.ID, CompletedAt: mustTime(t, "2026-02-07T09:00:00Z")})

	removed, err := comps.DeleteOwn(ctx, sched.ID, bob.ID)
	if err != nil {
		t.Fatalf("delete as bob: %v", err)
	}
	if removed != nil {
		t.Error("bob must not delete alice's completion")
	}

	removed, err = comps.DeleteOwn(ctx, sched.ID, alice.ID)
	if err != nil {
		t.Fatalf("delete as alice: %v", err)
	}
	if removed == nil || removed.UserID != alice.ID {
		t.Errorf("removed = %+v", removed)
	}
	got, _ := comps.GetByScheduleID(ctx, sched.ID)
	if got != nil {
		t.Error("completion should be gone")
	}
}

func TestCompletionSurvivesScheduleDelete(t *testing.T) {
	db := setupTestDB(t)
	cs, us, ss, comps := NewChoreStore(db), NewUserStore(db), NewScheduleStore(db), NewCompletionStore(db)
	ctx := context.Background()

	alice := mustUser(t, us, "alice@example.com", "Alice")
	c := mustChore(t, cs, "Dishes", frequency.Daily)
	sched, _, _ := ss.Upsert(ctx, NewSchedule{ChoreID: c.ID, ScheduledFor: mustTime(t, "2026-02-07T00:00:00Z"), SlotType: frequency.Daily})
	done, _, _ := comps.InsertForSchedule(ctx, NewCompletion{ChoreID: c.ID, UserID: alice.ID, ScheduleID: &sched.ID, CompletedAt: mustTime(t, "2026-02-07T09:00:00Z")})

	ss.Delete(ctx, sched.ID)
	got, err := comps.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("completion should survive schedule deletion")
	}
	if got.ScheduleID != nil {
		t.Errorf("schedule_id = %v, want nil", *got.ScheduleID)
	}
}

func TestCompletionListAndCount(t *testing.T) {
	db := setupTestDB(t)
	cs, us, comps := NewChoreStore(db), NewUserStore(db), NewCompletionStore(db)
	ctx := context.Background()

	alice := mustUser(t, us, "alice@example.com", "Alice")
	bob := mustUser(t, us, "bob@example.com", "Bob")
	c := mustChore(t, cs, "Dishes", frequency.Daily)
	for i, ts := range []string{"2026-02-05T09:00:00Z", "2026-02-06T09:00:00Z", "2026-02-07T09:00:00Z"} {
		uid := alice.ID
		if i == 1 {
			uid = bob.ID
		}
		if _, err := comps.InsertAdHoc(ctx, NewCompletion{ChoreID: c.ID, UserID: uid, CompletedAt: mustTime(t, ts)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := comps.List(ctx, CompletionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page = %d, want 2", len(page))
	}
	if !page[0].CompletedAt.Equal(mustTime(t, "2026-02-07T09:00:00Z")) {
		t.Errorf("first = %v, want newest", page[0].CompletedAt)
	}
	if page[0].Chore.Title != "Dishes" || page[0].User.Name != "Alice" {
		t.Errorf("detail = %+v", page[0])
	}

	total, _ := comps.Count(ctx, CompletionFilter{Limit: 2})
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	byAlice, _ := comps.Count(ctx, CompletionFilter{UserID: alice.ID})
	if byAlice != 2 {
		t.Errorf("alice = %d, want 2", byAlice)
	}

	since := mustTime(t, "2026-02-06T00:00:00Z")
	times, err := comps.CompletedTimes(ctx, alice.ID, since)
	if err != nil {
		t.Fatalf("completed times: %v", err)
	}
	if len(times) != 1 {
		t.Errorf("times = %v, want one", times)
	}
}
