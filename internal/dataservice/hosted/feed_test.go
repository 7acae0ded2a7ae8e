package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
)

// streamServer upgrades one connection, reads the subscribe frame, and
// hands control to script. The handler keeps the connection open until
// the peer goes away.
func streamServer(t *testing.T, frames chan<- subscribeFrame, script func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "key-1" {
			t.Errorf("apikey = %q, want key-1", r.URL.Query().Get("apikey"))
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want Bearer tok-1", auth)
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accepting websocket: %v", err)
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Errorf("reading subscribe frame: %v", err)
			return
		}
		var frame subscribeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Errorf("decoding subscribe frame: %v", err)
			return
		}
		frames <- frame

		if script != nil {
			script(ctx, conn)
		}

		// Hold the connection until the client closes it.
		conn.Read(ctx)
	}))
}

func recvEvent(t *testing.T, events <-chan dataservice.InsertEvent) (dataservice.InsertEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-events:
		return ev, ok
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return dataservice.InsertEvent{}, false
	}
}

func waitClosed(t *testing.T, events <-chan dataservice.InsertEvent) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel did not close")
		}
	}
}

func TestSubscribeDeliversInsertEvents(t *testing.T) {
	frames := make(chan subscribeFrame, 1)
	srv := streamServer(t, frames, func(ctx context.Context, conn *websocket.Conn) {
		send := func(payload string) {
			if err := conn.Write(ctx, websocket.MessageText, []byte(payload)); err != nil {
				t.Errorf("writing frame: %v", err)
			}
		}

		send(`{"table":"notifications","type":"insert","record":{"id":"n-1","user_id":"u-1","message":"Ana assigned you a task","type":"task_assigned","created_at":"2025-03-10T09:00:00Z"}}`)
		// Garbage, non-insert, and undecodable frames are dropped
		// without ending the feed.
		send(`not json at all`)
		send(`{"table":"notifications","type":"update","record":{"id":"n-1"}}`)
		send(`{"table":"notifications","type":"insert","record":{"id":7}}`)
		send(`{"table":"notifications","type":"insert","record":{"id":"n-2","user_id":"u-1","message":"done","type":"task_completed","created_at":"2025-03-10T09:05:00Z"}}`)
	})
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "tok-1", discardLogger())
	sub, err := c.Subscribe(context.Background(), model.TableNotifications, dataservice.Filter{
		Equals: map[string]string{"user_id": "u-1"},
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case frame := <-frames:
		if frame.Action != "subscribe" {
			t.Errorf("action = %q, want subscribe", frame.Action)
		}
		if frame.Table != "notifications" {
			t.Errorf("table = %q, want notifications", frame.Table)
		}
		if frame.Filter.Equals["user_id"] != "u-1" {
			t.Errorf("filter equals = %v, want user_id u-1", frame.Filter.Equals)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received a subscribe frame")
	}

	ev, ok := recvEvent(t, sub.Events())
	if !ok {
		t.Fatal("events channel closed before the first event")
	}
	if ev.Table != "notifications" || ev.Record.Kind != model.KindNotification {
		t.Fatalf("event = %+v, want notification insert", ev)
	}
	if ev.Record.Notification.ID != "n-1" || ev.Record.Notification.Type != "task_assigned" {
		t.Errorf("first event record = %+v, want n-1 task_assigned", ev.Record.Notification)
	}

	ev, ok = recvEvent(t, sub.Events())
	if !ok {
		t.Fatal("events channel closed before the second event")
	}
	if ev.Record.Notification.ID != "n-2" {
		t.Errorf("second event record id = %q, want n-2", ev.Record.Notification.ID)
	}

	if err := sub.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	waitClosed(t, sub.Events())
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	frames := make(chan subscribeFrame, 1)
	srv := streamServer(t, frames, nil)
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "tok-1", discardLogger())
	sub, err := c.Subscribe(context.Background(), model.TableTasks, dataservice.Filter{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	<-frames

	if err := sub.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	waitClosed(t, sub.Events())
}

func TestSubscribeEndsWhenServerCloses(t *testing.T) {
	frames := make(chan subscribeFrame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accepting websocket: %v", err)
			return
		}

		_, data, err := conn.Read(r.Context())
		if err != nil {
			t.Errorf("reading subscribe frame: %v", err)
			return
		}
		var frame subscribeFrame
		json.Unmarshal(data, &frame)
		frames <- frame

		conn.Close(websocket.StatusNormalClosure, "shutting down")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "tok-1", discardLogger())
	sub, err := c.Subscribe(context.Background(), model.TableTasks, dataservice.Filter{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	<-frames

	waitClosed(t, sub.Events())
}

func TestSubscribeDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no stream here", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", "tok-1", discardLogger())
	_, err := c.Subscribe(context.Background(), model.TableTasks, dataservice.Filter{})

	var svcErr *dataservice.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want ServiceError", err)
	}
	if svcErr.Op != "subscribe" {
		t.Errorf("op = %q, want subscribe", svcErr.Op)
	}
}
