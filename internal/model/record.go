package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies which variant a Record carries.
type Kind string

const (
	KindTask         Kind = "task"
	KindNotification Kind = "notification"
	KindProfile      Kind = "profile"
)

// Platform table names. The entity set is closed: every record the data
// service hands out belongs to exactly one of these tables.
const (
	TableTasks         = "tasks"
	TableNotifications = "notifications"
	TableProfiles      = "profiles"
)

// Record is a tagged union over the platform's entity set. Exactly one
// of the variant pointers is non-nil, matching Kind.
type Record struct {
	Kind         Kind
	Task         *Task
	Notification *Notification
	Profile      *Profile
}

// TaskRecord wraps a task as a Record.
func TaskRecord(t Task) Record {
	return Record{Kind: KindTask, Task: &t}
}

// NotificationRecord wraps a notification as a Record.
func NotificationRecord(n Notification) Record {
	return Record{Kind: KindNotification, Notification: &n}
}

// ProfileRecord wraps a profile as a Record.
func ProfileRecord(p Profile) Record {
	return Record{Kind: KindProfile, Profile: &p}
}

// KindForTable maps a platform table name to the kind of record it holds.
func KindForTable(table string) (Kind, bool) {
	switch table {
	case TableTasks:
		return KindTask, true
	case TableNotifications:
		return KindNotification, true
	case TableProfiles:
		return KindProfile, true
	default:
		return "", false
	}
}

// DecodeRecord parses a raw wire object from the given table into a
// typed Record. It is the single place untyped platform JSON becomes a
// variant.
func DecodeRecord(table string, data []byte) (Record, error) {
	kind, ok := KindForTable(table)
	if !ok {
		return Record{}, fmt.Errorf("decode record: unknown table %q", table)
	}
	switch kind {
	case KindTask:
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			return Record{}, fmt.Errorf("decode task: %w", err)
		}
		return TaskRecord(t), nil
	case KindNotification:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return Record{}, fmt.Errorf("decode notification: %w", err)
		}
		return NotificationRecord(n), nil
	default:
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return Record{}, fmt.Errorf("decode profile: %w", err)
		}
		return ProfileRecord(p), nil
	}
}

// ID returns the identifier of whichever variant the record carries.
func (r Record) ID() string {
	switch r.Kind {
	case KindTask:
		return r.Task.ID
	case KindNotification:
		return r.Notification.ID
	case KindProfile:
		return r.Profile.ID
	}
	return ""
}

// CreatedAt returns the creation time of whichever variant the record
// carries. Collections order by this field.
func (r Record) CreatedAt() time.Time {
	switch r.Kind {
	case KindTask:
		return r.Task.CreatedAt
	case KindNotification:
		return r.Notification.CreatedAt
	case KindProfile:
		return r.Profile.CreatedAt
	}
	return time.Time{}
}

// Payload returns the variant value for wire marshaling, or nil for a
// zero Record.
func (r Record) Payload() any {
	switch r.Kind {
	case KindTask:
		return r.Task
	case KindNotification:
		return r.Notification
	case KindProfile:
		return r.Profile
	}
	return nil
}
