// Package rest is the HTTP client for the Teamboard API. It implements the
// collaborator contracts the stores depend on: authentication, the user
// directory, and task persistence.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"teamboard/internal/domain"
)

// Client talks to a Teamboard API server.
type Client struct {
	BaseURL     string
	BearerToken string
	ActorID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type loginResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

// Authenticate resolves an identity and session token from credentials.
// Bad credentials map to domain.ErrAuthenticationFailed; anything else that
// goes wrong on the wire is a domain.TransportError.
func (c *Client) Authenticate(ctx context.Context, email, password string) (domain.User, string, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return domain.User{}, "", domain.ErrAuthenticationFailed
		}
		return domain.User{}, "", domain.TransportError{Op: "authenticate", Err: err}
	}
	return resp.User, resp.Token, nil
}

// ListUsers fetches the user directory.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var resp struct {
		Items []domain.User `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "users", nil, &resp); err != nil {
		return nil, wrapTransport("list users", err)
	}
	return resp.Items, nil
}

// ListTasks fetches the full task collection in insertion order.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var resp struct {
		Items []domain.Task `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "tasks", nil, &resp); err != nil {
		return nil, wrapTransport("list tasks", err)
	}
	return resp.Items, nil
}

// createTaskRequest mirrors the API's create payload. Optional fields are
// omitted when empty so the server assigns them.
type createTaskRequest struct {
	ID          string           `json:"id,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Progress    int              `json:"progress"`
	DueDate     string           `json:"due_date"`
	AssignedTo  string           `json:"assigned_to"`
	AssignedBy  string           `json:"assigned_by,omitempty"`
	CreatedAt   string           `json:"created_at,omitempty"`
	Subtasks    []domain.Subtask `json:"subtasks,omitempty"`
}

// CreateTask persists a new task and returns its confirmed representation.
func (c *Client) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	body := createTaskRequest{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Progress:    t.Progress,
		DueDate:     t.DueDate,
		AssignedTo:  t.AssignedTo,
		AssignedBy:  t.AssignedBy,
		CreatedAt:   t.CreatedAt,
		Subtasks:    t.Subtasks,
	}
	var resp domain.Task
	if err := c.do(ctx, http.MethodPost, "tasks", body, &resp); err != nil {
		return domain.Task{}, wrapTransport("create task", err)
	}
	return resp, nil
}

// GetTask fetches a single task.
func (c *Client) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var resp domain.Task
	if err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp); err != nil {
		return domain.Task{}, wrapTransport("get task", err)
	}
	return resp, nil
}

// TaskPatch carries the mutable fields of a task update.
type TaskPatch struct {
	Progress *int              `json:"progress,omitempty"`
	DueDate  *string           `json:"due_date,omitempty"`
	Subtasks *[]domain.Subtask `json:"subtasks,omitempty"`
}

// UpdateTask patches a task and returns its confirmed representation.
func (c *Client) UpdateTask(ctx context.Context, id string, patch TaskPatch) (domain.Task, error) {
	var resp domain.Task
	if err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), patch, &resp); err != nil {
		return domain.Task{}, wrapTransport("update task", err)
	}
	return resp, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil); err != nil {
		return wrapTransport("delete task", err)
	}
	return nil
}

// wrapTransport maps wire errors to the shared taxonomy: a 404 surfaces as
// ErrNotFound so stores can react, everything else is a TransportError.
func wrapTransport(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return domain.TransportError{Op: op, Err: err}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
