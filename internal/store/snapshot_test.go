package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/tests/testutil"
)

func snapshotTask(id, title string) model.Task {
	return model.Task{
		ID:          id,
		Title:       title,
		Description: "desc of " + title,
		Status:      model.StatusNotStarted,
		Priority:    model.PriorityMedium,
		CreatedAt:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		CreatorID:   "u-1",
		AssigneeID:  "u-1",
		CreatorName: "Ana",
	}
}

func snapshotNotification(id, message string, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "u-1",
		Message:   message,
		Type:      model.NotificationTaskAssigned,
		Read:      read,
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		TaskID:    "t-1",
	}
}

func TestSaveAndLoadTasks(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	due := time.Date(2025, 3, 20, 17, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 3, 11, 8, 30, 0, 0, time.UTC)

	first := snapshotTask("t-1", "write report")
	first.Status = model.StatusInProgress
	first.Priority = model.PriorityHigh
	first.DueAt = &due
	first.UpdatedAt = &updated
	first.AssigneeID = "u-2"
	first.AssigneeName = "Ben"

	second := snapshotTask("t-2", "review budget")

	if err := s.SaveTasks(ctx, "u-1", []model.Task{first, second}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	got, err := s.LoadTasks(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d tasks, want 2", len(got))
	}
	if got[0].ID != "t-1" || got[1].ID != "t-2" {
		t.Errorf("order = [%s %s], want [t-1 t-2]", got[0].ID, got[1].ID)
	}

	g := got[0]
	if g.Title != "write report" || g.Description != "desc of write report" {
		t.Errorf("title/description = %q/%q", g.Title, g.Description)
	}
	if g.Status != model.StatusInProgress || g.Priority != model.PriorityHigh {
		t.Errorf("status/priority = %s/%s", g.Status, g.Priority)
	}
	if g.DueAt == nil || !g.DueAt.Equal(due) {
		t.Errorf("DueAt = %v, want %v", g.DueAt, due)
	}
	if g.UpdatedAt == nil || !g.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt = %v, want %v", g.UpdatedAt, updated)
	}
	if !g.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", g.CreatedAt, first.CreatedAt)
	}
	if g.CreatorID != "u-1" || g.AssigneeID != "u-2" {
		t.Errorf("creator/assignee = %s/%s", g.CreatorID, g.AssigneeID)
	}
	if g.CreatorName != "Ana" || g.AssigneeName != "Ben" {
		t.Errorf("names = %q/%q", g.CreatorName, g.AssigneeName)
	}

	if got[1].DueAt != nil || got[1].UpdatedAt != nil {
		t.Errorf("t-2 optional times = %v/%v, want nil/nil", got[1].DueAt, got[1].UpdatedAt)
	}
}

func TestSaveTasksReplacesPreviousSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.SaveTasks(ctx, "u-1", []model.Task{
		snapshotTask("t-1", "a"),
		snapshotTask("t-2", "b"),
		snapshotTask("t-3", "c"),
	}); err != nil {
		t.Fatalf("first SaveTasks: %v", err)
	}

	if err := s.SaveTasks(ctx, "u-1", []model.Task{snapshotTask("t-9", "only")}); err != nil {
		t.Fatalf("second SaveTasks: %v", err)
	}

	got, err := s.LoadTasks(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t-9" {
		t.Errorf("snapshot = %v, want just t-9", got)
	}
}

func TestLoadWithoutSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	tasks, err := s.LoadTasks(ctx, "nobody")
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks = %v, want empty", tasks)
	}

	items, err := s.LoadNotifications(ctx, "nobody")
	if err != nil {
		t.Fatalf("LoadNotifications: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("notifications = %v, want empty", items)
	}
}

func TestSaveAndLoadNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	unread := snapshotNotification("n-1", "Ana assigned you a task", false)
	read := snapshotNotification("n-2", "Ben completed a task", true)
	read.Type = model.NotificationTaskCompleted
	read.TaskID = "t-2"

	if err := s.SaveNotifications(ctx, "u-1", []model.Notification{unread, read}); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	got, err := s.LoadNotifications(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadNotifications: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d notifications, want 2", len(got))
	}
	if got[0].ID != "n-1" || got[1].ID != "n-2" {
		t.Errorf("order = [%s %s], want [n-1 n-2]", got[0].ID, got[1].ID)
	}
	if got[0].Read || !got[1].Read {
		t.Errorf("read flags = %v/%v, want false/true", got[0].Read, got[1].Read)
	}
	if got[0].UserID != "u-1" || got[1].UserID != "u-1" {
		t.Errorf("user ids = %s/%s, want u-1/u-1", got[0].UserID, got[1].UserID)
	}
	if got[1].Type != model.NotificationTaskCompleted || got[1].TaskID != "t-2" {
		t.Errorf("n-2 type/task = %s/%s", got[1].Type, got[1].TaskID)
	}
	if !got[0].CreatedAt.Equal(unread.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, unread.CreatedAt)
	}
}

func TestSnapshotsIsolatedPerUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.SaveTasks(ctx, "u-1", []model.Task{snapshotTask("t-1", "mine")}); err != nil {
		t.Fatalf("SaveTasks u-1: %v", err)
	}
	if err := s.SaveTasks(ctx, "u-2", []model.Task{
		snapshotTask("t-2", "theirs"),
		snapshotTask("t-3", "also theirs"),
	}); err != nil {
		t.Fatalf("SaveTasks u-2: %v", err)
	}

	mine, err := s.LoadTasks(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadTasks u-1: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "t-1" {
		t.Errorf("u-1 snapshot = %v, want just t-1", mine)
	}

	theirs, err := s.LoadTasks(ctx, "u-2")
	if err != nil {
		t.Fatalf("LoadTasks u-2: %v", err)
	}
	if len(theirs) != 2 {
		t.Errorf("u-2 snapshot has %d tasks, want 2", len(theirs))
	}
}

func TestSavedAt(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, ok, err := s.SavedAt(ctx, "u-1")
	if err != nil {
		t.Fatalf("SavedAt before save: %v", err)
	}
	if ok {
		t.Error("SavedAt reported a snapshot before any save")
	}

	before := time.Now().Add(-time.Minute)
	if err := s.SaveNotifications(ctx, "u-1", []model.Notification{snapshotNotification("n-1", "hi", false)}); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	savedAt, ok, err := s.SavedAt(ctx, "u-1")
	if err != nil {
		t.Fatalf("SavedAt after save: %v", err)
	}
	if !ok {
		t.Fatal("SavedAt found no snapshot after save")
	}
	if savedAt.Before(before) || savedAt.After(time.Now().Add(time.Minute)) {
		t.Errorf("savedAt = %v, not near now", savedAt)
	}
}

func TestClearRemovesSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.SaveTasks(ctx, "u-1", []model.Task{snapshotTask("t-1", "a")}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}
	if err := s.SaveNotifications(ctx, "u-1", []model.Notification{snapshotNotification("n-1", "hi", false)}); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	if err := s.Clear(ctx, "u-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	tasks, err := s.LoadTasks(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	items, err := s.LoadNotifications(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadNotifications: %v", err)
	}
	if len(tasks) != 0 || len(items) != 0 {
		t.Errorf("after Clear: %d tasks, %d notifications, want 0/0", len(tasks), len(items))
	}

	if _, ok, err := s.SavedAt(ctx, "u-1"); err != nil || ok {
		t.Errorf("SavedAt after Clear = (%v, %v), want no snapshot", ok, err)
	}
}

// A fetch landing next to a pushed insert can leave the same record
// twice in the view. The snapshot must carry that state verbatim
// rather than collapsing it.
func TestDuplicateRecordsSurviveRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	dup := snapshotTask("t-1", "seen twice")
	if err := s.SaveTasks(ctx, "u-1", []model.Task{dup, dup}); err != nil {
		t.Fatalf("SaveTasks: %v", err)
	}

	got, err := s.LoadTasks(ctx, "u-1")
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t-1" || got[1].ID != "t-1" {
		t.Errorf("loaded %v, want t-1 twice", got)
	}
}
