// Package server implements the REST backend the teamboard client consumes:
// login, the user directory, and task persistence. It exists for development
// and tests; a deployment would swap in the real service behind the same
// contract.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"teamboard/internal/domain"
	"teamboard/internal/events"
	"teamboard/internal/metrics"
	"teamboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Repo     repo.Repo
	Events   events.Writer
	BasePath string
	Auth     AuthConfig
	Now      func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Teamboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Teamboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerLogin(group, cfg)
	registerUsers(group, cfg)
	registerTasks(group, cfg)
	registerEvents(group, cfg)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerLogin(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Authenticate and obtain a bearer token",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		email := strings.TrimSpace(input.Body.Email)
		if email == "" || input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email and password are required", nil)
		}
		u, hash, err := cfg.Repo.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
			}
			return nil, handleError(err)
		}
		if repo.HashPassword(input.Body.Password) != hash {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
		}
		token, err := issueToken(cfg.Auth, u.ID, cfg.now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{User: u, Token: token}}, nil
	})
}

func registerUsers(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserListResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.ListUsers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserListResponse `json:"body"`
		}{Body: UserListResponse{Items: items}}, nil
	})
}

func registerTasks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks in insertion order",
	}, func(ctx context.Context, input *struct {
		AssignedTo string `query:"assigned_to"`
	}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.ListTasks(ctx, input.AssignedTo)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Actor string            `header:"X-Actor-Id"`
		Body  CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		b := input.Body
		if strings.TrimSpace(b.Title) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if strings.TrimSpace(b.Description) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "description is required", nil)
		}
		if strings.TrimSpace(b.AssignedTo) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "assigned_to is required", nil)
		}
		if strings.TrimSpace(b.DueDate) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "due_date is required", nil)
		}
		if _, err := time.Parse(domain.DateFormat, b.DueDate); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "due_date must be YYYY-MM-DD", nil)
		}
		t := domain.Task{
			Title:       b.Title,
			Description: b.Description,
			Progress:    clampProgress(b.Progress),
			DueDate:     b.DueDate,
			AssignedTo:  b.AssignedTo,
			AssignedBy:  b.AssignedBy,
			CreatedAt:   cfg.now().UTC().Format(domain.DateFormat),
			Subtasks:    b.Subtasks,
		}
		if b.ID != nil && *b.ID != "" {
			t.ID = *b.ID
		} else {
			t.ID = uuid.New().String()
		}
		if b.CreatedAt != nil && *b.CreatedAt != "" {
			t.CreatedAt = *b.CreatedAt
		}
		if len(t.Subtasks) > 0 {
			t.Progress = metrics.SubtaskProgress(t.Subtasks)
		}
		tx, err := cfg.Repo.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := cfg.Repo.InsertTask(ctx, tx, t); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, tx, "task.created", "task", t.ID, actorOrUnknown(input.Actor), events.EventPayload{
			"title": t.Title, "assigned_to": t.AssignedTo,
		}); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := cfg.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update progress, due date, or subtasks",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Actor  string            `header:"X-Actor-Id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := cfg.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		oldProgress := t.Progress
		if input.Body.DueDate != nil {
			if _, err := time.Parse(domain.DateFormat, *input.Body.DueDate); err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "due_date must be YYYY-MM-DD", nil)
			}
			t.DueDate = *input.Body.DueDate
		}
		if input.Body.Subtasks != nil {
			t.Subtasks = *input.Body.Subtasks
		}
		if input.Body.Progress != nil {
			t.Progress = clampProgress(*input.Body.Progress)
		}
		// Subtasks, when present, are the source of truth for progress.
		if len(t.Subtasks) > 0 {
			t.Progress = metrics.SubtaskProgress(t.Subtasks)
		}
		tx, err := cfg.Repo.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := cfg.Repo.UpdateTask(ctx, tx, t); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, tx, "task.updated", "task", t.ID, actorOrUnknown(input.Actor), events.EventPayload{
			"old_progress": oldProgress, "new_progress": t.Progress,
		}); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete a task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Actor  string `header:"X-Actor-Id"`
	}) (*struct{}, error) {
		tx, err := cfg.Repo.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := cfg.Repo.DeleteTask(ctx, tx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, tx, "task.deleted", "task", input.TaskID, actorOrUnknown(input.Actor), nil); err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent audit events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		items, err := cfg.Repo.LatestEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: EventListResponse{Items: items}}, nil
	})
}

func clampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func actorOrUnknown(actor string) string {
	if actor == "" {
		return "unknown"
	}
	return actor
}
