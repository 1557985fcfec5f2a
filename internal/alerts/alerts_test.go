package alerts

import (
	"context"
	"testing"

	"teamboard/internal/domain"
)

func defaults() domain.AlertSettings {
	return domain.AlertSettings{DefaultDaysBeforeDue: 3, EnableEmailAlerts: true}
}

func TestToggleCreatesOverrideWithDefaultThreshold(t *testing.T) {
	m := New(defaults(), nil)

	a := m.Toggle("t1", true)
	if !a.Enabled {
		t.Fatal("toggle on should enable")
	}
	if a.DaysBeforeDue != 3 {
		t.Fatalf("days = %d, want the global default 3", a.DaysBeforeDue)
	}

	a = m.Toggle("t1", false)
	if a.Enabled {
		t.Fatal("toggle off should disable")
	}
	if a.DaysBeforeDue != 3 {
		t.Fatalf("days = %d, threshold must survive toggling", a.DaysBeforeDue)
	}
}

func TestSetDaysBeforeDueClamps(t *testing.T) {
	m := New(defaults(), nil)

	cases := []struct{ in, want int }{
		{0, 1},
		{-5, 1},
		{1, 1},
		{15, 15},
		{30, 30},
		{31, 30},
	}
	for _, tc := range cases {
		if got := m.SetDaysBeforeDue("t1", tc.in).DaysBeforeDue; got != tc.want {
			t.Errorf("SetDaysBeforeDue(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDefaultThresholdClamps(t *testing.T) {
	m := New(domain.AlertSettings{DefaultDaysBeforeDue: 99}, nil)
	if got := m.Settings().DefaultDaysBeforeDue; got != 30 {
		t.Fatalf("constructor default = %d, want clamped 30", got)
	}

	m.SetDefaultDaysBeforeDue(0)
	if got := m.Settings().DefaultDaysBeforeDue; got != 1 {
		t.Fatalf("default = %d, want clamped 1", got)
	}
}

func TestGetWithoutOverride(t *testing.T) {
	m := New(defaults(), nil)

	a := m.Get("unknown")
	if a.Enabled {
		t.Fatal("tasks without an override are disabled")
	}
	if a.DaysBeforeDue != 3 {
		t.Fatalf("days = %d, want the global default 3", a.DaysBeforeDue)
	}
}

func TestGlobalDefaultChangeDoesNotRewriteOverrides(t *testing.T) {
	m := New(defaults(), nil)
	m.Toggle("t1", true)

	m.SetDefaultDaysBeforeDue(10)
	if got := m.Get("t1").DaysBeforeDue; got != 3 {
		t.Fatalf("override days = %d, want the 3 captured at creation", got)
	}
	if got := m.Get("t2").DaysBeforeDue; got != 10 {
		t.Fatalf("fallback days = %d, want the new default 10", got)
	}
}

type countingMailer struct{ sent int }

func (c *countingMailer) SendTest(context.Context, domain.User) error {
	c.sent++
	return nil
}

func TestSendTestAlert(t *testing.T) {
	mailer := &countingMailer{}
	m := New(defaults(), mailer)

	u := domain.User{ID: "2", Name: "Joao Silva", Email: "joao@teamboard.dev"}
	if err := m.SendTestAlert(context.Background(), u); err != nil {
		t.Fatalf("send test: %v", err)
	}
	if mailer.sent != 1 {
		t.Fatalf("sent = %d, want 1", mailer.sent)
	}
}
