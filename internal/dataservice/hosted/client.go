package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ldiaz/taskboard/internal/dataservice"
	"github.com/ldiaz/taskboard/internal/model"
)

// Client talks to the hosted data platform's REST API and stream
// endpoint. It handles Bearer token authentication, the project API
// key, JSON (de)serialization, and the mapping of HTTP statuses onto
// the dataservice error taxonomy. Requests are never retried; failures
// surface to the caller as-is.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a platform client. The baseURL is the root URL of
// the platform project (e.g. https://proj.example.dev); token is the
// user's access token, apiKey the per-project key.
func NewClient(baseURL, apiKey, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Query implements dataservice.Service.
func (c *Client) Query(ctx context.Context, table string, q dataservice.Query) ([]model.Record, error) {
	path := "/api/v1/" + url.PathEscape(table)
	if qs := encodeQuery(q); qs != "" {
		path += "?" + qs
	}

	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "query", table, path, nil, &raw); err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(raw))
	for _, data := range raw {
		rec, err := model.DecodeRecord(table, data)
		if err != nil {
			return nil, &dataservice.ServiceError{Op: "query", Table: table, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Insert implements dataservice.Service.
func (c *Client) Insert(ctx context.Context, table string, rec model.Record) (string, error) {
	path := "/api/v1/" + url.PathEscape(table)

	var resp insertResponse
	if err := c.do(ctx, http.MethodPost, "insert", table, path, rec.Payload(), &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return rec.ID(), nil
	}
	return resp.ID, nil
}

// Update implements dataservice.Service.
func (c *Client) Update(ctx context.Context, table, id string, patch dataservice.Patch) error {
	path := "/api/v1/" + url.PathEscape(table) + "/" + url.PathEscape(id)
	return c.do(ctx, http.MethodPatch, "update", table, path, patch, nil)
}

// Delete implements dataservice.Service.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	path := "/api/v1/" + url.PathEscape(table) + "/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, "delete", table, path, nil, nil)
}

// do builds the request, attaches auth headers, executes it once, and
// maps the response onto the error taxonomy: 401 to AuthError, 404 to
// ErrNotFound, any other non-2xx or transport failure to ServiceError.
func (c *Client) do(
	ctx context.Context,
	method string,
	op string,
	table string,
	path string,
	body any,
	result any,
) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &dataservice.ServiceError{Op: op, Table: table, Err: fmt.Errorf("marshaling request body: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &dataservice.ServiceError{Op: op, Table: table, Err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &dataservice.ServiceError{Op: op, Table: table, Err: err}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &dataservice.ServiceError{Op: op, Table: table, Err: fmt.Errorf("reading response body: %w", readErr)}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &dataservice.AuthError{Message: "platform rejected access token for " + c.baseURL}
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s %s: %w", op, table, path, dataservice.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		var platformErr errorResponse
		if json.Unmarshal(respBody, &platformErr) == nil && platformErr.Error != "" {
			msg = platformErr.Error
		}
		return &dataservice.ServiceError{
			Op:         op,
			Table:      table,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &dataservice.ServiceError{Op: op, Table: table, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}

	return nil
}

// encodeQuery turns a Query into the platform's query-string dialect:
// one col=value pair per Equals entry, the OR group as
// any=col1:v1,col2:v2, plus order and limit.
func encodeQuery(q dataservice.Query) string {
	values := url.Values{}
	for col, val := range q.Filter.Equals {
		values.Set(col, val)
	}
	if len(q.Filter.MatchAny) > 0 {
		cols := make([]string, 0, len(q.Filter.MatchAny))
		for col := range q.Filter.MatchAny {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		pairs := make([]string, 0, len(cols))
		for _, col := range cols {
			pairs = append(pairs, col+":"+q.Filter.MatchAny[col])
		}
		values.Set("any", strings.Join(pairs, ","))
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		values.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	return values.Encode()
}
