package hosted

import "encoding/json"

// errorResponse is the platform's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// insertResponse is the body of a successful insert.
type insertResponse struct {
	ID string `json:"id"`
}

// wireFilter is the filter shape used in subscribe frames.
type wireFilter struct {
	Equals   map[string]string `json:"equals,omitempty"`
	MatchAny map[string]string `json:"match_any,omitempty"`
}

// subscribeFrame is the first message sent on a stream connection.
type subscribeFrame struct {
	Action string     `json:"action"`
	Table  string     `json:"table"`
	Filter wireFilter `json:"filter"`
}

// streamFrame is one push message received on a stream connection.
type streamFrame struct {
	Table  string          `json:"table"`
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}
