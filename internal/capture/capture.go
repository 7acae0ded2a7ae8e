// Package capture files unread mailbox messages as tasks on a
// schedule. Each sweep lists unseen messages, inserts a task per
// message through the data service, and marks the message seen so the
// next sweep skips it.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/internal/session"
)

// Message is one capture candidate pulled from the mailbox.
type Message struct {
	UID       uint32
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	Flagged   bool
	TextBody  string
	HTMLBody  string
}

// Mailbox lists capture candidates and marks them handled. Implemented
// by IMAPMailbox.
type Mailbox interface {
	Unseen(ctx context.Context) ([]Message, error)
	MarkSeen(ctx context.Context, uid uint32) error
}

// Capturer sweeps a mailbox and files each unread message as a task
// assigned to the capturing user.
type Capturer struct {
	mailbox Mailbox
	svc     dataservice.Service
	sess    session.Session
	logger  *slog.Logger
	now     func() time.Time
}

// New builds a capturer for the given mailbox and user.
func New(mailbox Mailbox, svc dataservice.Service, sess session.Session, logger *slog.Logger) *Capturer {
	return &Capturer{
		mailbox: mailbox,
		svc:     svc,
		sess:    sess,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one sweep. A message whose task insert fails is logged
// and left unseen, so the next sweep retries it. A message whose seen
// flag fails to stick is also logged; its task exists, so the next
// sweep may file a duplicate.
func (c *Capturer) Run(ctx context.Context) error {
	messages, err := c.mailbox.Unseen(ctx)
	if err != nil {
		return fmt.Errorf("listing unseen messages: %w", err)
	}

	captured := 0
	for _, msg := range messages {
		task := c.taskFromMessage(msg)

		if _, err := c.svc.Insert(ctx, model.TableTasks, model.TaskRecord(task)); err != nil {
			c.logger.Error("filing captured message failed",
				"uid", msg.UID, "subject", msg.Subject, "error", err)
			continue
		}
		captured++

		if err := c.mailbox.MarkSeen(ctx, msg.UID); err != nil {
			c.logger.Warn("marking message seen failed", "uid", msg.UID, "error", err)
		}
	}

	if captured > 0 {
		c.logger.Info("mail capture sweep complete",
			"captured", captured, "checked", len(messages))
	}

	return nil
}

// taskFromMessage maps a mailbox message to a task owned by and
// assigned to the capturing user. Flagged messages come in as high
// priority.
func (c *Capturer) taskFromMessage(msg Message) model.Task {
	title := strings.TrimSpace(msg.Subject)
	if title == "" {
		title = "(no subject)"
	}

	body := strings.TrimSpace(msg.TextBody)
	if body == "" && msg.HTMLBody != "" {
		body = stripHTML(msg.HTMLBody)
	}

	description := "From: " + msg.From
	if body != "" {
		description += "\n\n" + body
	}

	priority := model.PriorityMedium
	if msg.Flagged {
		priority = model.PriorityHigh
	}

	name := c.sess.DisplayName
	if name == "" {
		name = c.sess.Email
	}
	if name == "" {
		name = c.sess.UserID
	}

	return model.Task{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  description,
		Status:       model.StatusNotStarted,
		Priority:     priority,
		CreatedAt:    c.now().UTC(),
		CreatorID:    c.sess.UserID,
		AssigneeID:   c.sess.UserID,
		CreatorName:  name,
		AssigneeName: name,
	}
}

// Scheduler runs capture sweeps on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler registers a sweep at the given cron spec (descriptors
// like "@every 5m" work too). The schedule does not start running
// until Start.
func NewScheduler(c *Capturer, spec string, logger *slog.Logger) (*Scheduler, error) {
	cr := cron.New()

	_, err := cr.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := c.Run(ctx); err != nil {
			logger.Error("mail capture sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid capture schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: cr, logger: logger}, nil
}

// Start begins running sweeps on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish, up
// to a grace period.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("capture stop timed out waiting for running sweep")
	}
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes tags from an HTML body and decodes common
// entities, giving a rough plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
