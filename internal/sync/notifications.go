package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/internal/session"
)

// notificationFeedLimit bounds the initial notification fetch. Older
// entries stay on the platform and are not paged in.
const notificationFeedLimit = 20

// NotificationSync maintains the signed-in user's notification feed
// and its unread aggregate.
type NotificationSync struct {
	svc    dataservice.Service
	sess   session.Session
	logger *slog.Logger

	mu      gosync.Mutex
	items   []model.Notification
	unread  int
	sub     dataservice.Subscription
	running bool

	changeCh chan struct{}
}

// NewNotificationSync creates a feed view bound to the given session.
// The session is fixed for the lifetime of the view; a user change
// means discarding it and building a new one.
func NewNotificationSync(svc dataservice.Service, sess session.Session, logger *slog.Logger) *NotificationSync {
	return &NotificationSync{
		svc:      svc,
		sess:     sess,
		logger:   logger,
		changeCh: make(chan struct{}, 1),
	}
}

// Initialize replaces the local feed with a fresh newest-first page
// from the platform. On failure the previous state is kept and the
// error is returned for display; nothing retries.
func (s *NotificationSync) Initialize(ctx context.Context) error {
	if s.sess.IsZero() {
		return session.ErrNotAuthenticated
	}

	records, err := s.svc.Query(ctx, model.TableNotifications, dataservice.Query{
		Filter:  dataservice.Filter{Equals: map[string]string{"user_id": s.sess.UserID}},
		OrderBy: "created_at",
		Desc:    true,
		Limit:   notificationFeedLimit,
	})
	if err != nil {
		s.logger.Error("notification fetch failed", "user", s.sess.UserID, "error", err)
		return fmt.Errorf("initializing notifications: %w", err)
	}

	items := make([]model.Notification, 0, len(records))
	for _, rec := range records {
		if rec.Kind == model.KindNotification && rec.Notification != nil {
			items = append(items, *rec.Notification)
		}
	}

	s.mu.Lock()
	s.items = items
	s.recountLocked()
	s.mu.Unlock()
	s.notifyChange()
	return nil
}

// Seed loads a previously saved snapshot into the view without
// touching the platform. Meant for startup warm-up; the first
// Initialize replaces it wholesale.
func (s *NotificationSync) Seed(items []model.Notification) {
	s.mu.Lock()
	s.items = append([]model.Notification(nil), items...)
	s.recountLocked()
	s.mu.Unlock()
	s.notifyChange()
}

// ApplyRemoteInsert prepends a push-delivered notification and bumps
// the unread aggregate. No duplicate check happens here: an insert
// that raced the initial fetch shows up twice until the next
// Initialize.
func (s *NotificationSync) ApplyRemoteInsert(n model.Notification) {
	s.mu.Lock()
	s.items = append([]model.Notification{n}, s.items...)
	s.unread++
	s.mu.Unlock()
	s.notifyChange()
}

// MarkRead flips the read flag optimistically, adjusts the unread
// aggregate, then updates the platform. A failed remote update is
// logged and the local flag kept; the next Initialize reconciles.
// Unknown or already-read ids are a no-op.
func (s *NotificationSync) MarkRead(ctx context.Context, id string) {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 || s.items[idx].Read {
		s.mu.Unlock()
		return
	}
	s.items[idx].Read = true
	if s.unread > 0 {
		s.unread--
	}
	s.mu.Unlock()
	s.notifyChange()

	if err := s.svc.Update(ctx, model.TableNotifications, id, dataservice.Patch{"read": true}); err != nil {
		s.logger.Error("mark read failed", "id", id, "error", err)
	}
}

// MarkAllRead clears the unread state locally, then updates every
// affected record on the platform. Per-record failures are logged and
// not rolled back.
func (s *NotificationSync) MarkAllRead(ctx context.Context) {
	s.mu.Lock()
	var ids []string
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			ids = append(ids, s.items[i].ID)
		}
	}
	s.unread = 0
	s.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	s.notifyChange()

	for _, id := range ids {
		if err := s.svc.Update(ctx, model.TableNotifications, id, dataservice.Patch{"read": true}); err != nil {
			s.logger.Error("mark all read: update failed", "id", id, "error", err)
		}
	}
}

// Notifications returns a copy of the current feed, newest first.
func (s *NotificationSync) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Filter returns the notifications matching f, preserving feed order.
// It reads only local state.
func (s *NotificationSync) Filter(f NotificationFilter) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.items {
		if f.matches(n) {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns the unread aggregate.
func (s *NotificationSync) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Running reports whether the push feed is active.
func (s *NotificationSync) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start subscribes to the user's notification inserts and feeds them
// into the view until Stop or context cancellation. A second Start
// while running returns ErrStarted.
func (s *NotificationSync) Start(ctx context.Context) error {
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

	sub, err := s.svc.Subscribe(ctx, model.TableNotifications, dataservice.Filter{
		Equals: map[string]string{"user_id": s.sess.UserID},
	})
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("subscribing to notifications: %w", err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	go s.pump(sub)
	return nil
}

// Stop tears the subscription down. Safe to call repeatedly and
// before Start.
func (s *NotificationSync) Stop() {
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
func (s *NotificationSync) pump(sub dataservice.Subscription) {
	for ev := range sub.Events() {
		if ev.Record.Kind != model.KindNotification || ev.Record.Notification == nil {
			continue
		}
		s.ApplyRemoteInsert(*ev.Record.Notification)
	}

	s.mu.Lock()
	ended := s.running && s.sub == sub
	if ended {
		s.running = false
		s.sub = nil
	}
	s.mu.Unlock()

	if ended {
		s.logger.Warn("notification feed ended")
		s.notifyChange()
	}
}

// Changes returns a coalescing signal channel that fires after every
// local state change. UIs use it to schedule re-renders.
func (s *NotificationSync) Changes() <-chan struct{} {
	return s.changeCh
}

func (s *NotificationSync) notifyChange() {
	select {
	case s.changeCh <- struct{}{}:
	default:
	}
}

// recountLocked recomputes the unread aggregate from the collection.
func (s *NotificationSync) recountLocked() {
	unread := 0
	for i := range s.items {
		if !s.items[i].Read {
			unread++
		}
	}
	s.unread = unread
}
