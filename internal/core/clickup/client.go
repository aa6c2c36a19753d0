// Package clickup is a typed client for the tracker's REST API. Every
// request carries the stored credential as an Authorization header.
package clickup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/colonyops/duetoday/internal/core/task"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.clickup.com/api/v2"

var (
	// ErrMissingCredential is returned when no API token is configured.
	ErrMissingCredential = errors.New("no API token configured")
	// ErrUnauthorized is returned when the API rejects the token.
	ErrUnauthorized = errors.New("API token rejected")
)

// Client issues authenticated requests to the tracker.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL   string // empty = DefaultBaseURL
	UserAgent string
	Timeout   time.Duration // zero = 10s
}

// New creates a client with the given token. An empty token is allowed;
// requests will fail with ErrMissingCredential so callers can gate on it.
func New(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "duetoday"
	}
	return &Client{
		baseURL:   opts.BaseURL,
		token:     token,
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout},
	}
}

// HasCredential reports whether the client carries a token.
func (c *Client) HasCredential() bool {
	return c.token != ""
}

// AuthorizedUser fetches the identity behind the configured token.
func (c *Client) AuthorizedUser(ctx context.Context) (User, error) {
	var resp userResponse
	if err := c.get(ctx, "/user", nil, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// Teams lists the workspaces the user belongs to.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp teamsResponse
	if err := c.get(ctx, "/team", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

// Spaces lists the spaces of one workspace.
func (c *Client) Spaces(ctx context.Context, teamID string) ([]Space, error) {
	var resp spacesResponse
	q := url.Values{"archived": {"false"}}
	if err := c.get(ctx, "/team/"+url.PathEscape(teamID)+"/space", q, &resp); err != nil {
		return nil, err
	}
	return resp.Spaces, nil
}

// TasksDue lists tasks for an assignee within a due-date range.
func (c *Client) TasksDue(ctx context.Context, query TaskQuery) ([]task.Task, error) {
	q := url.Values{}
	q.Set("assignees[]", strconv.Itoa(query.AssigneeID))
	q.Set("subtasks", "true")
	q.Set("include_closed", strconv.FormatBool(query.IncludeClosed))
	if query.DueAfter > 0 {
		q.Set("due_date_gt", strconv.FormatInt(query.DueAfter, 10))
	}
	q.Set("due_date_lt", strconv.FormatInt(query.DueBefore, 10))

	var resp tasksResponse
	if err := c.get(ctx, "/team/"+url.PathEscape(query.TeamID)+"/task", q, &resp); err != nil {
		return nil, err
	}

	tasks := make([]task.Task, 0, len(resp.Tasks))
	for _, w := range resp.Tasks {
		t := w.toTask()
		if t.TeamID == "" {
			t.TeamID = query.TeamID
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CompleteTask marks a task complete by updating its status field.
func (c *Client) CompleteTask(ctx context.Context, taskID string) error {
	body := map[string]any{"status": "complete"}
	return c.put(ctx, "/task/"+url.PathEscape(taskID), body)
}

// RescheduleTask updates a task's due date.
func (c *Client) RescheduleTask(ctx context.Context, taskID string, due time.Time) error {
	body := map[string]any{
		"due_date":      due.UnixMilli(),
		"due_date_time": true,
	}
	return c.put(ctx, "/task/"+url.PathEscape(taskID), body)
}

// CreateTimeEntry records a tracked interval against a task.
func (c *Client) CreateTimeEntry(ctx context.Context, taskID string, entry TimeEntry) error {
	body := map[string]any{
		"start": entry.Start.UnixMilli(),
		"end":   entry.End.UnixMilli(),
		"time":  entry.Duration.Milliseconds(),
	}
	return c.post(ctx, "/task/"+url.PathEscape(taskID)+"/time", body)
}

// TaskURL returns the canonical web URL for a task.
func (c *Client) TaskURL(taskID string) string {
	return "https://app.clickup.com/t/" + url.PathEscape(taskID)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, dest)
}

func (c *Client) put(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, nil)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	if c.token == "" {
		return ErrMissingCredential
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("close response body")
		}
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if dest == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}
