// Package directory resolves user ids to display names. Assignments carry
// soft references, so a miss degrades to a placeholder instead of failing.
package directory

import (
	"context"

	"teamboard/internal/domain"
)

// UnknownUser is shown when an id has no matching directory entry.
const UnknownUser = "Unknown user"

// Lister is the external user directory collaborator.
type Lister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// Directory caches the user list for lookups.
type Directory struct {
	lister Lister
	byID   map[string]domain.User
	users  []domain.User
}

func New(lister Lister) *Directory {
	return &Directory{lister: lister, byID: map[string]domain.User{}}
}

// Load fetches the directory. Safe to call again to refresh.
func (d *Directory) Load(ctx context.Context) error {
	users, err := d.lister.ListUsers(ctx)
	if err != nil {
		return err
	}
	d.users = users
	d.byID = make(map[string]domain.User, len(users))
	for _, u := range users {
		d.byID[u.ID] = u
	}
	return nil
}

// Users returns the cached directory.
func (d *Directory) Users() []domain.User {
	out := make([]domain.User, len(d.users))
	copy(out, d.users)
	return out
}

// Lookup returns the user for an id, if known.
func (d *Directory) Lookup(id string) (domain.User, bool) {
	u, ok := d.byID[id]
	return u, ok
}

// DisplayName resolves an id to a name, degrading to UnknownUser.
func (d *Directory) DisplayName(id string) string {
	if u, ok := d.byID[id]; ok {
		return u.Name
	}
	return UnknownUser
}
