package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
)

func task(id, creator, status string, age time.Duration) model.Task {
	return model.Task{
		ID:        id,
		Title:     "task " + id,
		Status:    status,
		Priority:  model.PriorityMedium,
		CreatedAt: time.Now().Add(-age),
		CreatorID: creator,
	}
}

func recountStatuses(tasks []model.Task) map[string]int {
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

func countsEqual(a, b map[string]int) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}

func TestTaskInitializeUsesRelevanceFilter(t *testing.T) {
	svc := newFakeService()
	svc.records[model.TableTasks] = []model.Record{
		model.TaskRecord(task("t1", "u-1", model.StatusNotStarted, time.Minute)),
	}
	s := NewTaskSync(svc, testSession(), testLogger())

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	q := svc.queries[0]
	if q.Filter.MatchAny["creator_id"] != "u-1" || q.Filter.MatchAny["assignee_id"] != "u-1" {
		t.Errorf("relevance filter = %v, want creator_id/assignee_id = u-1", q.Filter.MatchAny)
	}
	if q.OrderBy != "created_at" || !q.Desc {
		t.Errorf("order = %s desc=%v, want created_at desc", q.OrderBy, q.Desc)
	}
	if q.Limit != 0 {
		t.Errorf("limit = %d, want 0 (unbounded)", q.Limit)
	}
}

func TestTaskInitializeFailureKeepsPriorState(t *testing.T) {
	svc := newFakeService()
	svc.queryErr = errors.New("boom")
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-1", model.StatusInProgress, time.Hour)})

	if err := s.Initialize(context.Background()); err == nil {
		t.Fatal("Initialize succeeded, want error")
	}
	if len(s.Tasks()) != 1 {
		t.Fatalf("len = %d, want prior 1", len(s.Tasks()))
	}
	if got := s.StatusCounts()[model.StatusInProgress]; got != 1 {
		t.Fatalf("in_progress count = %d, want 1", got)
	}
}

func TestCreateFillsIdentityAndPrepends(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t0", "u-1", model.StatusDone, time.Hour)})

	created, err := s.Create(context.Background(), model.Task{Title: "write report"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if created.ID == "" {
		t.Fatal("id not generated")
	}
	if created.CreatorID != "u-1" || created.CreatorName != "Ana" {
		t.Errorf("creator = %s/%s, want u-1/Ana", created.CreatorID, created.CreatorName)
	}
	if created.Status != model.StatusNotStarted || created.Priority != model.PriorityMedium {
		t.Errorf("defaults = %s/%s, want not_started/medium", created.Status, created.Priority)
	}
	if created.CreatedAt.IsZero() {
		t.Error("created_at not stamped")
	}

	tasks := s.Tasks()
	if tasks[0].ID != created.ID {
		t.Fatalf("head = %s, want new task first", tasks[0].ID)
	}
	if got := len(svc.insertsTo(model.TableTasks)); got != 1 {
		t.Fatalf("task inserts = %d, want 1", got)
	}
	if !countsEqual(s.StatusCounts(), recountStatuses(tasks)) {
		t.Fatalf("aggregate %v != recount %v", s.StatusCounts(), recountStatuses(tasks))
	}
}

func TestCreateWithoutTitleRejected(t *testing.T) {
	s := NewTaskSync(newFakeService(), testSession(), testLogger())
	if _, err := s.Create(context.Background(), model.Task{}); err == nil {
		t.Fatal("Create with empty title succeeded")
	}
}

func TestCreateRemoteFailureLeavesStateUntouched(t *testing.T) {
	svc := newFakeService()
	svc.insertErr[model.TableTasks] = errors.New("insert refused")
	s := NewTaskSync(svc, testSession(), testLogger())

	if _, err := s.Create(context.Background(), model.Task{Title: "x"}); err == nil {
		t.Fatal("Create succeeded, want error")
	}
	if len(s.Tasks()) != 0 {
		t.Fatalf("len = %d, want 0", len(s.Tasks()))
	}
	if got := s.StatusCounts()[model.StatusNotStarted]; got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
}

func TestCreateAssignedToOtherNotifiesAssignee(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())

	_, err := s.Create(context.Background(), model.Task{Title: "review doc", AssigneeID: "u-2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	notices := svc.insertsTo(model.TableNotifications)
	if len(notices) != 1 {
		t.Fatalf("notification inserts = %d, want 1", len(notices))
	}
	n := notices[0].rec.Notification
	if n.UserID != "u-2" || n.Type != model.NotificationTaskAssigned {
		t.Errorf("notice = %s/%s, want u-2/task_assigned", n.UserID, n.Type)
	}
}

func TestCreateAssignedToSelfDoesNotNotify(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())

	if _, err := s.Create(context.Background(), model.Task{Title: "x", AssigneeID: "u-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := len(svc.insertsTo(model.TableNotifications)); got != 0 {
		t.Fatalf("notification inserts = %d, want 0", got)
	}
}

func TestUpdateStatusMovesAggregateBuckets(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{
		task("t1", "u-1", model.StatusNotStarted, time.Minute),
		task("t2", "u-1", model.StatusNotStarted, time.Hour),
	})

	if err := s.UpdateStatus(context.Background(), "t1", model.StatusInProgress); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	counts := s.StatusCounts()
	if counts[model.StatusNotStarted] != 1 || counts[model.StatusInProgress] != 1 {
		t.Fatalf("counts = %v, want not_started:1 in_progress:1", counts)
	}
	got, _ := s.Get("t1")
	if got.Status != model.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if got.UpdatedAt == nil {
		t.Fatal("updated_at not stamped")
	}
	if !countsEqual(counts, recountStatuses(s.Tasks())) {
		t.Fatalf("aggregate %v != recount %v", counts, recountStatuses(s.Tasks()))
	}

	patch := svc.updates[0].patch
	if patch["status"] != model.StatusInProgress {
		t.Errorf("patch status = %v, want in_progress", patch["status"])
	}
	if _, ok := patch["updated_at"]; !ok {
		t.Error("patch missing updated_at")
	}
}

func TestUpdateStatusInvalidRejected(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	if err := s.UpdateStatus(context.Background(), "t1", "archived"); err == nil {
		t.Fatal("invalid status accepted")
	}
	if svc.updateCount() != 0 {
		t.Fatal("remote update issued for invalid status")
	}
}

func TestUpdateStatusRemoteFailureKeepsOptimisticState(t *testing.T) {
	svc := newFakeService()
	svc.updateErr = errors.New("write refused")
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-1", model.StatusNotStarted, time.Minute)})

	err := s.UpdateStatus(context.Background(), "t1", model.StatusDone)
	if err == nil {
		t.Fatal("UpdateStatus succeeded, want surfaced error")
	}

	// Local state keeps the optimistic change; the next Initialize
	// reconciles it with whatever the platform holds.
	got, _ := s.Get("t1")
	if got.Status != model.StatusDone {
		t.Fatalf("status = %s, want done kept locally", got.Status)
	}
}

func TestCompletingAnotherUsersTaskNotifiesCreator(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-creator", model.StatusInProgress, time.Minute)})

	if err := s.UpdateStatus(context.Background(), "t1", model.StatusDone); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	notices := svc.insertsTo(model.TableNotifications)
	if len(notices) != 1 {
		t.Fatalf("notification inserts = %d, want exactly 1", len(notices))
	}
	n := notices[0].rec.Notification
	if n.UserID != "u-creator" {
		t.Errorf("addressed to %s, want u-creator", n.UserID)
	}
	if n.TaskID != "t1" {
		t.Errorf("task ref = %s, want t1", n.TaskID)
	}
	if n.Type != model.NotificationTaskCompleted {
		t.Errorf("type = %s, want task_completed", n.Type)
	}
	if !strings.Contains(n.Message, "Ana") {
		t.Errorf("message %q does not name the actor", n.Message)
	}
}

func TestCompletingOwnTaskDoesNotNotify(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-1", model.StatusInProgress, time.Minute)})

	if err := s.UpdateStatus(context.Background(), "t1", model.StatusDone); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got := len(svc.insertsTo(model.TableNotifications)); got != 0 {
		t.Fatalf("notification inserts = %d, want 0", got)
	}
}

func TestNonTerminalStatusChangeDoesNotNotify(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-creator", model.StatusNotStarted, time.Minute)})

	if err := s.UpdateStatus(context.Background(), "t1", model.StatusInProgress); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got := len(svc.insertsTo(model.TableNotifications)); got != 0 {
		t.Fatalf("notification inserts = %d, want 0", got)
	}
}

func TestCompletionNoticeFailureDoesNotUndoStatus(t *testing.T) {
	svc := newFakeService()
	svc.insertErr[model.TableNotifications] = errors.New("insert refused")
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-creator", model.StatusInProgress, time.Minute)})

	if err := s.UpdateStatus(context.Background(), "t1", model.StatusDone); err != nil {
		t.Fatalf("UpdateStatus surfaced fire-and-forget failure: %v", err)
	}
	got, _ := s.Get("t1")
	if got.Status != model.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
}

func TestUpdateFieldsAssignmentNotifies(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-1", model.StatusNotStarted, time.Minute)})

	assignee := "u-2"
	name := "Bo"
	err := s.UpdateFields(context.Background(), "t1", TaskPatch{AssigneeID: &assignee, AssigneeName: &name})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, _ := s.Get("t1")
	if got.AssigneeID != "u-2" || got.AssigneeName != "Bo" {
		t.Fatalf("assignee = %s/%s, want u-2/Bo", got.AssigneeID, got.AssigneeName)
	}
	notices := svc.insertsTo(model.TableNotifications)
	if len(notices) != 1 {
		t.Fatalf("notification inserts = %d, want 1", len(notices))
	}
	if notices[0].rec.Notification.UserID != "u-2" {
		t.Errorf("addressed to %s, want u-2", notices[0].rec.Notification.UserID)
	}
}

func TestUpdateFieldsClearDue(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	due := time.Now().Add(24 * time.Hour)
	seeded := task("t1", "u-1", model.StatusNotStarted, time.Minute)
	seeded.DueAt = &due
	s.Seed([]model.Task{seeded})

	if err := s.UpdateFields(context.Background(), "t1", TaskPatch{ClearDue: true}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	got, _ := s.Get("t1")
	if got.DueAt != nil {
		t.Fatal("due date not cleared")
	}
	if v, ok := svc.updates[0].patch["due_at"]; !ok || v != nil {
		t.Fatalf("patch due_at = %v/%v, want explicit nil", v, ok)
	}
}

func TestDeleteRemoteFirst(t *testing.T) {
	svc := newFakeService()
	svc.deleteErr = errors.New("delete refused")
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{task("t1", "u-1", model.StatusNotStarted, time.Minute)})

	if err := s.Delete(context.Background(), "t1"); err == nil {
		t.Fatal("Delete succeeded, want error")
	}
	// Remote refusal means the local entry stays.
	if len(s.Tasks()) != 1 {
		t.Fatalf("len = %d, want 1", len(s.Tasks()))
	}
}

func TestDeleteRemovesExactlyOnePreservingOrder(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	s.Seed([]model.Task{
		task("t1", "u-1", model.StatusNotStarted, time.Minute),
		task("t2", "u-1", model.StatusInProgress, time.Hour),
		task("t3", "u-1", model.StatusDone, 2*time.Hour),
	})

	if err := s.Delete(context.Background(), "t2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	tasks := s.Tasks()
	if len(tasks) != 2 || tasks[0].ID != "t1" || tasks[1].ID != "t3" {
		t.Fatalf("tasks = %v, want [t1 t3] in order", taskIDs(tasks))
	}
	if !countsEqual(s.StatusCounts(), recountStatuses(tasks)) {
		t.Fatalf("aggregate %v != recount %v", s.StatusCounts(), recountStatuses(tasks))
	}
}

func TestDeleteDuplicateRemovesSingleEntry(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	// A fetch/push race can leave the same task twice; delete takes
	// out one entry per call.
	dup := task("t1", "u-1", model.StatusNotStarted, time.Minute)
	s.Seed([]model.Task{dup})
	s.ApplyRemoteInsert(dup)

	if err := s.Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := len(s.Tasks()); got != 1 {
		t.Fatalf("len = %d, want 1 remaining duplicate", got)
	}
}

func TestFilterIsPureProjection(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	due := time.Now().Add(2 * time.Hour)
	urgent := task("t1", "u-1", model.StatusInProgress, time.Minute)
	urgent.Priority = model.PriorityHigh
	urgent.DueAt = &due
	plain := task("t2", "u-2", model.StatusNotStarted, time.Hour)
	plain.Description = "quarterly budget numbers"
	done := task("t3", "u-1", model.StatusDone, 2*time.Hour)
	s.Seed([]model.Task{urgent, plain, done})

	tests := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{"all", TaskFilter{}, []string{"t1", "t2", "t3"}},
		{"by status", TaskFilter{Status: model.StatusDone}, []string{"t3"}},
		{"by priority", TaskFilter{Priority: model.PriorityHigh}, []string{"t1"}},
		{"by query on description", TaskFilter{Query: "BUDGET"}, []string{"t2"}},
		{"by query on title", TaskFilter{Query: "task t1"}, []string{"t1"}},
		{"due window", TaskFilter{DueWithin: 24 * time.Hour}, []string{"t1"}},
		{"no match", TaskFilter{Status: model.StatusDone, Priority: model.PriorityHigh}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := taskIDs(s.Filter(tt.filter))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	if got := svc.queryCount(); got != 0 {
		t.Fatalf("filtering touched the service %d times, want 0", got)
	}
}

func TestDueSoonSortedSoonestFirst(t *testing.T) {
	s := NewTaskSync(newFakeService(), testSession(), testLogger())
	in2h := time.Now().Add(2 * time.Hour)
	in30m := time.Now().Add(30 * time.Minute)
	in10d := time.Now().Add(240 * time.Hour)
	t1 := task("t1", "u-1", model.StatusNotStarted, time.Minute)
	t1.DueAt = &in2h
	t2 := task("t2", "u-1", model.StatusInProgress, time.Hour)
	t2.DueAt = &in30m
	t3 := task("t3", "u-1", model.StatusNotStarted, time.Hour)
	t3.DueAt = &in10d
	t4 := task("t4", "u-1", model.StatusDone, time.Hour)
	t4.DueAt = &in30m
	s.Seed([]model.Task{t1, t2, t3, t4})

	got := taskIDs(s.DueSoon(7 * 24 * time.Hour))
	want := []string{"t2", "t1"}
	if len(got) != len(want) {
		t.Fatalf("due soon = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("due soon = %v, want %v", got, want)
		}
	}
}

func TestAggregatesMatchRecountThroughMutations(t *testing.T) {
	svc := newFakeService()
	svc.records[model.TableTasks] = []model.Record{
		model.TaskRecord(task("t1", "u-1", model.StatusNotStarted, time.Minute)),
		model.TaskRecord(task("t2", "u-2", model.StatusInProgress, time.Hour)),
		model.TaskRecord(task("t3", "u-1", model.StatusDone, 2*time.Hour)),
	}
	s := NewTaskSync(svc, testSession(), testLogger())
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		if !countsEqual(s.StatusCounts(), recountStatuses(s.Tasks())) {
			t.Fatalf("%s: aggregate %v != recount %v", step, s.StatusCounts(), recountStatuses(s.Tasks()))
		}
	}

	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	check("initialize")

	if _, err := s.Create(ctx, model.Task{Title: "new"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	check("create")

	if err := s.UpdateStatus(ctx, "t1", model.StatusDone); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	check("update status")

	if err := s.Delete(ctx, "t2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	check("delete")
}

func TestTaskSubscriptionDeliversPushInserts(t *testing.T) {
	svc := newFakeService()
	s := NewTaskSync(svc, testSession(), testLogger())
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	if got := svc.subscribes[0].filter.MatchAny["assignee_id"]; got != "u-1" {
		t.Fatalf("subscribe filter assignee_id = %q, want u-1", got)
	}

	svc.subs[0].push(dataservice.InsertEvent{
		Table:  model.TableTasks,
		Record: model.TaskRecord(task("t9", "u-2", model.StatusNotStarted, 0)),
	})

	waitFor(t, func() bool { return len(s.Tasks()) == 1 })
	if s.Tasks()[0].ID != "t9" {
		t.Fatalf("head = %s, want t9", s.Tasks()[0].ID)
	}
	if !countsEqual(s.StatusCounts(), recountStatuses(s.Tasks())) {
		t.Fatalf("aggregate %v != recount %v", s.StatusCounts(), recountStatuses(s.Tasks()))
	}
}

func taskIDs(tasks []model.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}
