package sync

import (
	"context"
	"io"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
	"github.com/ldiaz/taskboard/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession() session.Session {
	return session.Session{UserID: "u-1", Email: "ana@example.com", DisplayName: "Ana"}
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type insertCall struct {
	table string
	rec   model.Record
}

type updateCall struct {
	table string
	id    string
	patch dataservice.Patch
}

type deleteCall struct {
	table string
	id    string
}

type subscribeCall struct {
	table  string
	filter dataservice.Filter
}

// fakeService records every call and serves canned data. Errors are
// returned after the call is recorded, so tests can assert that an
// operation was attempted even when it fails.
type fakeService struct {
	mu gosync.Mutex

	records      map[string][]model.Record
	queryErr     error
	insertErr    map[string]error
	updateErr    error
	deleteErr    error
	subscribeErr error

	queries    []dataservice.Query
	inserts    []insertCall
	updates    []updateCall
	deletes    []deleteCall
	subscribes []subscribeCall
	subs       []*fakeSub
}

func newFakeService() *fakeService {
	return &fakeService{
		records:   make(map[string][]model.Record),
		insertErr: make(map[string]error),
	}
}

func (f *fakeService) Query(_ context.Context, table string, q dataservice.Query) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return append([]model.Record(nil), f.records[table]...), nil
}

func (f *fakeService) Insert(_ context.Context, table string, rec model.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts = append(f.inserts, insertCall{table: table, rec: rec})
	if err := f.insertErr[table]; err != nil {
		return "", err
	}
	return rec.ID(), nil
}

func (f *fakeService) Update(_ context.Context, table, id string, patch dataservice.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{table: table, id: id, patch: patch})
	return f.updateErr
}

func (f *fakeService) Delete(_ context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleteCall{table: table, id: id})
	return f.deleteErr
}

func (f *fakeService) Subscribe(_ context.Context, table string, filter dataservice.Filter) (dataservice.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, subscribeCall{table: table, filter: filter})
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	sub := newFakeSub()
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeService) insertsTo(table string) []insertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []insertCall
	for _, c := range f.inserts {
		if c.table == table {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeService) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeService) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeSub struct {
	events chan dataservice.InsertEvent

	mu         gosync.Mutex
	closed     bool
	closeCalls int
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan dataservice.InsertEvent, 16)}
}

func (s *fakeSub) Events() <-chan dataservice.InsertEvent { return s.events }

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSub) push(ev dataservice.InsertEvent) {
	s.events <- ev
}

func (s *fakeSub) closedNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
