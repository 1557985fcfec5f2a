package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"teamboard/internal/app"
	"teamboard/internal/db"
	"teamboard/internal/domain"
	"teamboard/internal/events"
	"teamboard/internal/migrate"
	"teamboard/internal/repo"
	"teamboard/internal/rest"
)

const testSecret = "test-secret"

// startServer brings up the API on a real listener backed by a throwaway
// sqlite database, seeded with the demo users.
func startServer(t *testing.T) string {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	if err := app.SeedUsers(context.Background(), r, "senha123"); err != nil {
		t.Fatalf("seed users: %v", err)
	}

	handler, err := New(Config{
		Repo:   r,
		Events: events.Writer{DB: conn},
		Auth:   AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

func login(t *testing.T, client *rest.Client) domain.User {
	t.Helper()
	u, token, err := client.Authenticate(context.Background(), "joao@teamboard.dev", "senha123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if token == "" {
		t.Fatal("expected a bearer token")
	}
	client.BearerToken = token
	client.ActorID = u.ID
	return u
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	client := rest.New(startServer(t))

	_, _, err := client.Authenticate(context.Background(), "joao@teamboard.dev", "wrong")
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("wrong password err = %v, want ErrAuthenticationFailed", err)
	}
	_, _, err = client.Authenticate(context.Background(), "nobody@teamboard.dev", "senha123")
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("unknown email err = %v, want ErrAuthenticationFailed", err)
	}
}

func TestRequestsRequireBearerToken(t *testing.T) {
	client := rest.New(startServer(t))

	_, err := client.ListTasks(context.Background())
	var te domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("unauthenticated list err = %v, want TransportError", err)
	}

	login(t, client)
	if _, err := client.ListTasks(context.Background()); err != nil {
		t.Fatalf("authenticated list: %v", err)
	}
}

func TestHealthIsOpen(t *testing.T) {
	base := startServer(t)
	resp, err := http.Get(base + "/v0/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}
}

func TestTaskLifecycle(t *testing.T) {
	client := rest.New(startServer(t))
	u := login(t, client)

	created, err := client.CreateTask(context.Background(), domain.Task{
		Title:       "Prepare launch checklist",
		Description: "Everything that must be green before go-live",
		DueDate:     "2026-09-15",
		AssignedTo:  u.ID,
		AssignedBy:  "1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a server-assigned id")
	}
	if created.CreatedAt == "" {
		t.Fatal("expected a server-assigned creation date")
	}

	tasks, err := client.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Fatalf("list = %+v, want just the created task", tasks)
	}

	progress := 60
	updated, err := client.UpdateTask(context.Background(), created.ID, rest.TaskPatch{Progress: &progress})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Progress != 60 {
		t.Fatalf("progress = %d, want 60", updated.Progress)
	}

	subs := []domain.Subtask{
		{ID: "1", Title: "write", Completed: true},
		{ID: "2", Title: "review"},
	}
	updated, err = client.UpdateTask(context.Background(), created.ID, rest.TaskPatch{Subtasks: &subs})
	if err != nil {
		t.Fatalf("update subtasks: %v", err)
	}
	if updated.Progress != 50 {
		t.Fatalf("progress = %d, want 50 derived from subtasks", updated.Progress)
	}

	if err := client.DeleteTask(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := client.DeleteTask(context.Background(), created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := client.UpdateTask(context.Background(), created.ID, rest.TaskPatch{Progress: &progress}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update after delete err = %v, want ErrNotFound", err)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	client := rest.New(startServer(t))
	login(t, client)

	cases := []struct {
		name string
		task domain.Task
	}{
		{"missing title", domain.Task{Description: "d", DueDate: "2026-09-15", AssignedTo: "2"}},
		{"missing due date", domain.Task{Title: "t", Description: "d", AssignedTo: "2"}},
		{"malformed due date", domain.Task{Title: "t", Description: "d", DueDate: "15/09/2026", AssignedTo: "2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.CreateTask(context.Background(), tc.task)
			if err == nil {
				t.Fatal("expected a validation rejection")
			}
		})
	}
}

func TestListUsersAndEvents(t *testing.T) {
	base := startServer(t)
	client := rest.New(base)
	u := login(t, client)

	users, err := client.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("users = %d, want the 4 seeded", len(users))
	}

	if _, err := client.CreateTask(context.Background(), domain.Task{
		Title:       "Audit trail check",
		Description: "creation should leave an event",
		DueDate:     "2026-09-15",
		AssignedTo:  u.ID,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/v0/events", nil)
	req.Header.Set("Authorization", "Bearer "+client.BearerToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("events status = %d body = %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "task.created") {
		t.Fatalf("events body %s should mention task.created", body)
	}
}
