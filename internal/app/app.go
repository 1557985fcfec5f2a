// Package app wires the stores together. Everything is constructed once at
// process start and passed by reference; there is no ambient global state.
package app

import (
	"context"
	"path/filepath"

	"teamboard/internal/alerts"
	"teamboard/internal/config"
	"teamboard/internal/directory"
	"teamboard/internal/domain"
	"teamboard/internal/notify"
	"teamboard/internal/repo"
	"teamboard/internal/rest"
	"teamboard/internal/session"
	"teamboard/internal/store"
)

// App is the assembled client: session, task store, alert manager, and
// user directory, all sharing one API client.
type App struct {
	Client    *rest.Client
	Session   *session.Store
	Tasks     *store.Store
	Alerts    *alerts.Manager
	Directory *directory.Directory
}

// New builds the client stack for a workspace. The session is restored from
// disk immediately so callers see any surviving identity.
func New(cfg *config.Config, workspace string, notifier notify.Notifier) *App {
	client := rest.New(cfg.API.BaseURL)
	sess := session.New(client, filepath.Join(workspace, ".teamboard"))
	sess.Restore()
	client.BearerToken = sess.Token()
	if u, ok := sess.Current(); ok {
		client.ActorID = u.ID
	}
	return &App{
		Client:  client,
		Session: sess,
		Tasks:   store.New(client, notifier),
		Alerts: alerts.New(domain.AlertSettings{
			DefaultDaysBeforeDue: cfg.Alerts.DefaultDaysBeforeDue,
			EnableEmailAlerts:    cfg.Alerts.EnableEmailAlerts,
		}, nil),
		Directory: directory.New(client),
	}
}

// SeedUsers inserts the default team when the users table is empty, so a
// fresh dev backend is immediately usable. Matches the demo data the UI
// shipped with.
func SeedUsers(ctx context.Context, r repo.Repo, password string) error {
	existing, err := r.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	users := []domain.User{
		{ID: "1", Name: "Admin", Email: "admin@teamboard.dev", Role: domain.RoleAdmin},
		{ID: "2", Name: "Joao Silva", Email: "joao@teamboard.dev", Role: domain.RoleMember},
		{ID: "3", Name: "Maria Souza", Email: "maria@teamboard.dev", Role: domain.RoleMember},
		{ID: "4", Name: "Pedro Costa", Email: "pedro@teamboard.dev", Role: domain.RoleMember},
	}
	hash := repo.HashPassword(password)
	for _, u := range users {
		if err := r.InsertUser(ctx, u, hash); err != nil {
			return err
		}
	}
	return nil
}
