package dataservice

import (
	"context"

	"github.com/ldiaz/taskboard/internal/model"
)

// Filter selects records by column value. Equals entries are combined
// with AND; MatchAny entries form a single OR group that is ANDed with
// the rest (e.g. "creator_id = u OR assignee_id = u").
type Filter struct {
	Equals   map[string]string
	MatchAny map[string]string
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return len(f.Equals) == 0 && len(f.MatchAny) == 0
}

// Query bounds a table read.
type Query struct {
	Filter Filter

	// OrderBy names the column to sort on; Desc selects descending
	// order. Empty means platform default order.
	OrderBy string
	Desc    bool

	// Limit caps the number of records returned. Zero means no limit.
	Limit int
}

// Patch is a partial update, column name to new value. Values must be
// JSON-encodable.
type Patch map[string]any

// InsertEvent is one push-delivered insert from a subscription.
type InsertEvent struct {
	Table  string
	Record model.Record
}

// Subscription is a live feed of inserts into one table. Events are
// delivered in arrival order on the channel returned by Events; the
// channel is closed when the subscription ends, whether by Close or by
// a feed failure.
type Subscription interface {
	Events() <-chan InsertEvent

	// Close tears the subscription down and releases its resources.
	// Safe to call more than once.
	Close() error
}

// Service is the client contract for the hosted data platform. All
// persistence and push delivery go through it; the client keeps no
// authoritative state of its own.
type Service interface {
	// Query returns records from table matching q, ordered and bounded
	// as requested.
	Query(ctx context.Context, table string, q Query) ([]model.Record, error)

	// Insert stores a new record and returns the id it was stored
	// under.
	Insert(ctx context.Context, table string, rec model.Record) (string, error)

	// Update applies a partial update to the record with the given id.
	Update(ctx context.Context, table, id string, patch Patch) error

	// Delete removes the record with the given id.
	Delete(ctx context.Context, table, id string) error

	// Subscribe opens a push feed of inserts into table matching f.
	// The feed stays open until the subscription is closed or the
	// context is canceled.
	Subscribe(ctx context.Context, table string, f Filter) (Subscription, error)
}
