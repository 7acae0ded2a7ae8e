package hosted

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
)

// Subscribe implements dataservice.Service. It dials the platform's
// stream endpoint over websocket, sends a subscribe frame for the
// table and filter, and delivers decoded insert events until the
// subscription is closed, the context is canceled, or the connection
// drops. The events channel closing signals the end either way; a new
// feed requires a fresh Subscribe call.
func (c *Client) Subscribe(ctx context.Context, table string, f dataservice.Filter) (dataservice.Subscription, error) {
	streamURL, err := c.streamURL()
	if err != nil {
		return nil, &dataservice.ServiceError{Op: "subscribe", Table: table, Err: err}
	}

	conn, _, err := websocket.Dial(ctx, streamURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": {"Bearer " + c.token},
		},
	})
	if err != nil {
		return nil, &dataservice.ServiceError{Op: "subscribe", Table: table, Err: err}
	}

	frame := subscribeFrame{
		Action: "subscribe",
		Table:  table,
		Filter: wireFilter{Equals: f.Equals, MatchAny: f.MatchAny},
	}
	data, err := json.Marshal(frame)
	if err != nil {
		conn.CloseNow()
		return nil, &dataservice.ServiceError{Op: "subscribe", Table: table, Err: err}
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		conn.CloseNow()
		return nil, &dataservice.ServiceError{Op: "subscribe", Table: table, Err: err}
	}

	sub := &subscription{
		conn:   conn,
		events: make(chan dataservice.InsertEvent, 16),
		logger: c.logger,
	}
	go sub.readLoop(ctx)
	return sub, nil
}

// streamURL derives the websocket endpoint from the REST base URL.
func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/stream")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// subscription is one live stream connection. Teardown happens exactly
// once no matter how many paths reach it: Close, context cancellation,
// and read failure all funnel into the same shutdown.
type subscription struct {
	conn      *websocket.Conn
	events    chan dataservice.InsertEvent
	logger    *slog.Logger
	closeOnce sync.Once
}

// Events implements dataservice.Subscription.
func (s *subscription) Events() <-chan dataservice.InsertEvent {
	return s.events
}

// Close implements dataservice.Subscription. Closing the connection
// unblocks the read loop, which then closes the events channel.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.conn.Close(websocket.StatusNormalClosure, "unsubscribe")
	})
	return nil
}

func (s *subscription) readLoop(ctx context.Context) {
	defer close(s.events)
	defer s.conn.CloseNow()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.logger.Warn("stream closed", "error", err)
			}
			return
		}

		var frame streamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("stream: dropping malformed frame", "error", err)
			continue
		}
		if !strings.EqualFold(frame.Type, "insert") {
			continue
		}
		rec, err := model.DecodeRecord(frame.Table, frame.Record)
		if err != nil {
			s.logger.Warn("stream: dropping undecodable record", "table", frame.Table, "error", err)
			continue
		}

		select {
		case s.events <- dataservice.InsertEvent{Table: frame.Table, Record: rec}:
		case <-ctx.Done():
			return
		}
	}
}
