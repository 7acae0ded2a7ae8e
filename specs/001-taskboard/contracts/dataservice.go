// Package contracts defines the client-side contract for the hosted
// data platform. Everything the client persists, queries, or receives
// as a push event goes through this surface; the client keeps no
// authoritative state of its own.
//
// Library: net/http for REST, coder/websocket for the stream.
// Auth: Bearer access token + per-project API key header.
package contracts

import "context"

// Table names form a closed entity set. Records from any other table
// are a protocol error.
const (
	TableTasks         = "tasks"
	TableNotifications = "notifications"
	TableProfiles      = "profiles"
)

// Filter selects records by column value. Equals entries are combined
// with AND; MatchAny entries form a single OR group that is ANDed with
// the rest. MatchAny exists for the task relevance query
// "creator_id = user OR assignee_id = user".
type Filter struct {
	Equals   map[string]string
	MatchAny map[string]string
}

// Query bounds a table read.
//
// Wire encoding (REST query string):
//   one col=value pair per Equals entry
//   any=col1:v1,col2:v2 for the MatchAny group (columns sorted)
//   order=col.asc|col.desc
//   limit=N (omitted when zero)
type Query struct {
	Filter  Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Patch is a partial update, column name to new JSON-encodable value.
// A nil value clears a nullable column (used for removing deadlines).
type Patch map[string]any

// InsertEvent is one push-delivered insert.
//
// Wire encoding (stream frame, server to client):
//   {"table":"tasks","type":"insert","record":{...}}
// Frames with any other "type", unparseable frames, and records that
// fail to decode are dropped; the feed continues.
type InsertEvent struct {
	Table  string
	Record any
}

// Subscription is a live feed of inserts into one table.
//
// Opening handshake (client to server, first frame after dial):
//   {"action":"subscribe","table":...,"filter":{...}}
type Subscription interface {
	// Events delivers inserts in arrival order. The channel closes when
	// the subscription ends, whether by Close, context cancellation, or
	// connection loss. A closed feed is not re-armed; resubscribe.
	Events() <-chan InsertEvent

	// Close tears the feed down. Idempotent.
	Close() error
}

// Service is the full platform contract.
//
// Error taxonomy (every method):
//   401            -> *AuthError (credentials rejected)
//   404            -> ErrNotFound (record does not exist)
//   other non-2xx  -> *ServiceError carrying status and server message
//   transport      -> *ServiceError carrying the underlying error
// No method retries; the caller decides what a failure means.
type Service interface {
	// Query: GET {base}/api/v1/{table}?...
	Query(ctx context.Context, table string, q Query) ([]any, error)

	// Insert: POST {base}/api/v1/{table}. Returns the id the record was
	// stored under (the server may replace a client-generated id).
	Insert(ctx context.Context, table string, rec any) (string, error)

	// Update: PATCH {base}/api/v1/{table}/{id}
	Update(ctx context.Context, table, id string, patch Patch) error

	// Delete: DELETE {base}/api/v1/{table}/{id}
	Delete(ctx context.Context, table, id string) error

	// Subscribe: dial {ws-base}/api/v1/stream?apikey=..., then send the
	// subscribe frame.
	Subscribe(ctx context.Context, table string, f Filter) (Subscription, error)
}
