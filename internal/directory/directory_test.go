package directory

import (
	"context"
	"testing"

	"teamboard/internal/domain"
)

type fakeLister struct{ users []domain.User }

func (f fakeLister) ListUsers(context.Context) ([]domain.User, error) {
	return f.users, nil
}

func TestDisplayName(t *testing.T) {
	d := New(fakeLister{users: []domain.User{
		{ID: "1", Name: "Admin", Role: domain.RoleAdmin},
		{ID: "2", Name: "Joao Silva", Role: domain.RoleMember},
	}})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := d.DisplayName("2"); got != "Joao Silva" {
		t.Fatalf("DisplayName(2) = %q", got)
	}
	if got := d.DisplayName("999"); got != UnknownUser {
		t.Fatalf("DisplayName(999) = %q, want %q", got, UnknownUser)
	}
	if _, ok := d.Lookup("999"); ok {
		t.Fatal("lookup of unknown id should miss")
	}
}

func TestDisplayNameBeforeLoad(t *testing.T) {
	d := New(fakeLister{})
	if got := d.DisplayName("1"); got != UnknownUser {
		t.Fatalf("DisplayName before load = %q, want %q", got, UnknownUser)
	}
}
