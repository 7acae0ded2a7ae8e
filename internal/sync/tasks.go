package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/internal/session"
)

// TaskSync maintains the board view of every task relevant to the
// signed-in user (created by them or assigned to them) and the
// per-status aggregate.
type TaskSync struct {
	svc    dataservice.Service
	sess   session.Session
	logger *slog.Logger

	mu      gosync.Mutex
	tasks   []model.Task
	counts  map[string]int
	sub     dataservice.Subscription
	running bool

	changeCh chan struct{}
}

// NewTaskSync creates a board view bound to the given session. The
// session is fixed for the lifetime of the view.
func NewTaskSync(svc dataservice.Service, sess session.Session, logger *slog.Logger) *TaskSync {
	return &TaskSync{
		svc:      svc,
		sess:     sess,
		logger:   logger,
		counts:   make(map[string]int),
		changeCh: make(chan struct{}, 1),
	}
}

// relevance selects tasks the user created or is assigned to.
func (s *TaskSync) relevance() dataservice.Filter {
	return dataservice.Filter{MatchAny: map[string]string{
		"creator_id":  s.sess.UserID,
		"assignee_id": s.sess.UserID,
	}}
}

// Initialize replaces the local board with a fresh newest-first fetch
// of all relevant tasks. On failure the previous state is kept and the
// error is returned for display; nothing retries.
func (s *TaskSync) Initialize(ctx context.Context) error {
	if s.sess.IsZero() {
		return session.ErrNotAuthenticated
	}

	records, err := s.svc.Query(ctx, model.TableTasks, dataservice.Query{
		Filter:  s.relevance(),
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		s.logger.Error("task fetch failed", "user", s.sess.UserID, "error", err)
		return fmt.Errorf("initializing tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(records))
	for _, rec := range records {
		if rec.Kind == model.KindTask && rec.Task != nil {
			tasks = append(tasks, *rec.Task)
		}
	}

	s.mu.Lock()
	s.tasks = tasks
	s.recountLocked()
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// Seed loads a previously saved snapshot into the view without
// touching the platform. Meant for startup warm-up; the first
// Initialize replaces it wholesale.
func (s *TaskSync) Seed(tasks []model.Task) {
	s.mu.Lock()
	s.tasks = append([]model.Task(nil), tasks...)
	s.recountLocked()
	s.mu.Unlock()
	s.notifyChange()
}

// ApplyRemoteInsert prepends a push-delivered task and bumps its
// status bucket. No duplicate check happens here: an insert that raced
// the initial fetch, or the feed echoing the user's own create, shows
// up twice until the next Initialize.
func (s *TaskSync) ApplyRemoteInsert(t model.Task) {
	s.mu.Lock()
	s.tasks = append([]model.Task{t}, s.tasks...)
	s.counts[t.Status]++
	s.mu.Unlock()
	s.notifyChange()
}

// Create stores a new task on the platform and, on success, prepends
// it to the local board. Identity fields and the creation timestamp
// are filled here; a failed insert leaves local state untouched.
func (s *TaskSync) Create(ctx context.Context, t model.Task) (model.Task, error) {
	if s.sess.IsZero() {
		return model.Task{}, session.ErrNotAuthenticated
	}
	if t.Title == "" {
		return model.Task{}, fmt.Errorf("creating task: title is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = model.StatusNotStarted
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	t.CreatorID = s.sess.UserID
	if t.CreatorName == "" {
		t.CreatorName = s.actorName()
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = nil

	id, err := s.svc.Insert(ctx, model.TableTasks, model.TaskRecord(t))
	if err != nil {
		s.logger.Error("task create failed", "title", t.Title, "error", err)
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	t.ID = id

	s.mu.Lock()
	s.tasks = append([]model.Task{t}, s.tasks...)
	s.counts[t.Status]++
	s.mu.Unlock()
	s.notifyChange()

	if t.AssigneeID != "" && t.AssigneeID != s.sess.UserID {
		s.notifyAssignment(ctx, t.ID, t.Title, t.AssigneeID)
	}
	return t, nil
}

// UpdateStatus moves a task to a new status locally first, then issues
// the remote patch. On remote failure the local change is kept (logged
// and returned for display); the next Initialize reconciles. Marking
// someone else's task done notifies its creator, fire-and-forget.
func (s *TaskSync) UpdateStatus(ctx context.Context, id, status string) error {
	if !model.ValidStatus(status) {
		return fmt.Errorf("updating task status: invalid status %q", status)
	}
	now := time.Now().UTC()

	var creatorID, title string
	found := false

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		found = true
		if old := s.tasks[i].Status; old != status {
			s.counts[old]--
			s.counts[status]++
		}
		s.tasks[i].Status = status
		s.tasks[i].UpdatedAt = &now
		creatorID = s.tasks[i].CreatorID
		title = s.tasks[i].Title
		break
	}
	s.mu.Unlock()
	if found {
		s.notifyChange()
	}

	patch := dataservice.Patch{"status": status, "updated_at": now}
	if err := s.svc.Update(ctx, model.TableTasks, id, patch); err != nil {
		s.logger.Error("status update failed", "id", id, "status", status, "error", err)
		return fmt.Errorf("updating task status: %w", err)
	}

	if status == model.StatusDone && found && creatorID != "" && creatorID != s.sess.UserID {
		s.notifyCompletion(ctx, id, title, creatorID)
	}
	return nil
}

// TaskPatch is a partial task edit. Nil fields are left unchanged;
// ClearDue removes the deadline.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *string
	DueAt        *time.Time
	ClearDue     bool
	AssigneeID   *string
	AssigneeName *string
}

// UpdateFields edits a task's writable fields locally first, then
// issues the remote patch. On remote failure the local change is kept
// (logged and returned for display). Assigning the task to another
// user notifies them, fire-and-forget.
func (s *TaskSync) UpdateFields(ctx context.Context, id string, p TaskPatch) error {
	if p.Priority != nil && !model.ValidPriority(*p.Priority) {
		return fmt.Errorf("updating task: invalid priority %q", *p.Priority)
	}
	now := time.Now().UTC()

	var oldAssignee, title string
	found := false

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		found = true
		oldAssignee = s.tasks[i].AssigneeID
		if p.Title != nil {
			s.tasks[i].Title = *p.Title
		}
		if p.Description != nil {
			s.tasks[i].Description = *p.Description
		}
		if p.Priority != nil {
			s.tasks[i].Priority = *p.Priority
		}
		if p.ClearDue {
			s.tasks[i].DueAt = nil
		} else if p.DueAt != nil {
			due := *p.DueAt
			s.tasks[i].DueAt = &due
		}
		if p.AssigneeID != nil {
			s.tasks[i].AssigneeID = *p.AssigneeID
		}
		if p.AssigneeName != nil {
			s.tasks[i].AssigneeName = *p.AssigneeName
		}
		s.tasks[i].UpdatedAt = &now
		title = s.tasks[i].Title
		break
	}
	s.mu.Unlock()
	if found {
		s.notifyChange()
	}

	patch := dataservice.Patch{"updated_at": now}
	if p.Title != nil {
		patch["title"] = *p.Title
	}
	if p.Description != nil {
		patch["description"] = *p.Description
	}
	if p.Priority != nil {
		patch["priority"] = *p.Priority
	}
	if p.ClearDue {
		patch["due_at"] = nil
	} else if p.DueAt != nil {
		patch["due_at"] = *p.DueAt
	}
	if p.AssigneeID != nil {
		patch["assignee_id"] = *p.AssigneeID
	}
	if p.AssigneeName != nil {
		patch["assignee_name"] = *p.AssigneeName
	}

	if err := s.svc.Update(ctx, model.TableTasks, id, patch); err != nil {
		s.logger.Error("task update failed", "id", id, "error", err)
		return fmt.Errorf("updating task: %w", err)
	}

	if p.AssigneeID != nil && *p.AssigneeID != "" &&
		*p.AssigneeID != oldAssignee && *p.AssigneeID != s.sess.UserID {
		s.notifyAssignment(ctx, id, title, *p.AssigneeID)
	}
	return nil
}

// Delete removes the task from the platform first; only a confirmed
// remote delete removes the local entry. Exactly one entry goes and
// the rest keep their relative order. On failure local state is left
// untouched and the error is returned for display.
func (s *TaskSync) Delete(ctx context.Context, id string) error {
	if err := s.svc.Delete(ctx, model.TableTasks, id); err != nil {
		s.logger.Error("task delete failed", "id", id, "error", err)
		return fmt.Errorf("deleting task: %w", err)
	}

	s.mu.Lock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.counts[s.tasks[i].Status]--
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// Tasks returns a copy of the current board, newest first.
func (s *TaskSync) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Get returns the local copy of one task.
func (s *TaskSync) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Filter returns tasks matching f, preserving board order. It reads
// only local state.
func (s *TaskSync) Filter(f TaskFilter) []model.Task {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Task
	for _, t := range s.tasks {
		if f.matches(t, now) {
			out = append(out, t)
		}
	}
	return out
}

// StatusCounts returns the per-status aggregate.
func (s *TaskSync) StatusCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// DueSoon returns open tasks due inside the window, soonest first.
func (s *TaskSync) DueSoon(window time.Duration) []model.Task {
	now := time.Now()

	s.mu.Lock()
	var out []model.Task
	for _, t := range s.tasks {
		if t.DueWithin(now, window) {
			out = append(out, t)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].DueAt.Before(*out[j].DueAt)
	})
	return out
}

// Running reports whether the push feed is active.
func (s *TaskSync) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start subscribes to inserts of relevant tasks and feeds them into
// the view until Stop or context cancellation. A second Start while
// running returns ErrStarted.
func (s *TaskSync) Start(ctx context.Context) error {
	if s.sess.IsZero() {
		return session.ErrNotAuthenticated
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrStarted
	}
	s.running = true
	s.mu.Unlock()

	sub, err := s.svc.Subscribe(ctx, model.TableTasks, s.relevance())
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("subscribing to tasks: %w", err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	go s.pump(sub)
	return nil
}

// Stop tears the subscription down. Safe to call repeatedly and
// before Start.
func (s *TaskSync) Stop() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.running = false
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// pump drains the subscription until its channel closes.
func (s *TaskSync) pump(sub dataservice.Subscription) {
	for ev := range sub.Events() {
		if ev.Record.Kind != model.KindTask || ev.Record.Task == nil {
			continue
		}
		s.ApplyRemoteInsert(*ev.Record.Task)
	}

	s.mu.Lock()
	ended := s.running && s.sub == sub
	if ended {
		s.running = false
		s.sub = nil
	}
	s.mu.Unlock()

	if ended {
		s.logger.Warn("task feed ended")
		s.notifyChange()
	}
}

// Changes returns a coalescing signal channel that fires after every
// local state change.
func (s *TaskSync) Changes() <-chan struct{} {
	return s.changeCh
}

func (s *TaskSync) notifyChange() {
	select {
	case s.changeCh <- struct{}{}:
	default:
	}
}

// recountLocked recomputes the status aggregate from the collection.
func (s *TaskSync) recountLocked() {
	counts := make(map[string]int, len(model.Statuses))
	for i := range s.tasks {
		counts[s.tasks[i].Status]++
	}
	s.counts = counts
}

// notifyCompletion tells the task's creator it was finished by someone
// else. Best-effort: a failure never blocks the status change.
func (s *TaskSync) notifyCompletion(ctx context.Context, taskID, title, creatorID string) {
	n := model.Notification{
		ID:        uuid.NewString(),
		UserID:    creatorID,
		Message:   fmt.Sprintf("%s completed %q", s.actorName(), title),
		Type:      model.NotificationTaskCompleted,
		CreatedAt: time.Now().UTC(),
		TaskID:    taskID,
	}
	if _, err := s.svc.Insert(ctx, model.TableNotifications, model.NotificationRecord(n)); err != nil {
		s.logger.Warn("completion notice failed", "task", taskID, "error", err)
	}
}

// notifyAssignment tells a user a task landed on their plate.
// Best-effort, like notifyCompletion.
func (s *TaskSync) notifyAssignment(ctx context.Context, taskID, title, assigneeID string) {
	n := model.Notification{
		ID:        uuid.NewString(),
		UserID:    assigneeID,
		Message:   fmt.Sprintf("%s assigned you %q", s.actorName(), title),
		Type:      model.NotificationTaskAssigned,
		CreatedAt: time.Now().UTC(),
		TaskID:    taskID,
	}
	if _, err := s.svc.Insert(ctx, model.TableNotifications, model.NotificationRecord(n)); err != nil {
		s.logger.Warn("assignment notice failed", "task", taskID, "error", err)
	}
}

// actorName is the display name used in notification messages.
func (s *TaskSync) actorName() string {
	if s.sess.DisplayName != "" {
		return s.sess.DisplayName
	}
	if s.sess.Email != "" {
		return s.sess.Email
	}
	return s.sess.UserID
}
