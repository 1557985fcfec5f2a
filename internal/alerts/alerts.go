// Package alerts manages due-date alert configuration: team-wide defaults
// plus per-task overrides. Nothing here sends email; delivery belongs to the
// Mailer collaborator, and the operations that would trigger it only
// acknowledge.
package alerts

import (
	"context"

	"teamboard/internal/domain"
)

// Mailer is the external delivery collaborator. SendTest is acknowledged
// only in this core.
type Mailer interface {
	SendTest(ctx context.Context, to domain.User) error
}

// AckMailer acknowledges without delivering.
type AckMailer struct{}

func (AckMailer) SendTest(context.Context, domain.User) error { return nil }

// Manager holds the global settings and the per-task overrides.
type Manager struct {
	settings  domain.AlertSettings
	overrides map[string]domain.TaskAlert
	mailer    Mailer
}

// New builds a manager with the given defaults. mailer may be nil.
func New(settings domain.AlertSettings, mailer Mailer) *Manager {
	if mailer == nil {
		mailer = AckMailer{}
	}
	return &Manager{
		settings:  clampSettings(settings),
		overrides: map[string]domain.TaskAlert{},
		mailer:    mailer,
	}
}

// Settings returns the global defaults.
func (m *Manager) Settings() domain.AlertSettings { return m.settings }

// SetDefaultDaysBeforeDue updates the global threshold, clamped to 1..30.
func (m *Manager) SetDefaultDaysBeforeDue(days int) {
	m.settings.DefaultDaysBeforeDue = clampDays(days)
}

// SetEmailAlertsEnabled flips the global email switch.
func (m *Manager) SetEmailAlertsEnabled(enabled bool) {
	m.settings.EnableEmailAlerts = enabled
}

// Toggle enables or disables the alert for one task, creating the override
// with the global default threshold when it does not exist yet.
func (m *Manager) Toggle(taskID string, enabled bool) domain.TaskAlert {
	a, ok := m.overrides[taskID]
	if !ok {
		a = domain.TaskAlert{DaysBeforeDue: m.settings.DefaultDaysBeforeDue}
	}
	a.Enabled = enabled
	m.overrides[taskID] = a
	return a
}

// SetDaysBeforeDue sets the per-task threshold, clamped to 1..30.
func (m *Manager) SetDaysBeforeDue(taskID string, days int) domain.TaskAlert {
	a, ok := m.overrides[taskID]
	if !ok {
		a = domain.TaskAlert{}
	}
	a.DaysBeforeDue = clampDays(days)
	m.overrides[taskID] = a
	return a
}

// Get returns the effective alert settings for a task: its override when one
// exists, otherwise a disabled entry carrying the global default threshold.
func (m *Manager) Get(taskID string) domain.TaskAlert {
	if a, ok := m.overrides[taskID]; ok {
		return a
	}
	return domain.TaskAlert{Enabled: false, DaysBeforeDue: m.settings.DefaultDaysBeforeDue}
}

// SendTestAlert asks the delivery collaborator for a test message.
func (m *Manager) SendTestAlert(ctx context.Context, to domain.User) error {
	return m.mailer.SendTest(ctx, to)
}

// SaveSettings acknowledges a settings save. Persistence of alert
// configuration is out of scope; the in-memory state is authoritative for
// the session.
func (m *Manager) SaveSettings() {}

func clampSettings(s domain.AlertSettings) domain.AlertSettings {
	s.DefaultDaysBeforeDue = clampDays(s.DefaultDaysBeforeDue)
	return s
}

func clampDays(days int) int {
	if days < 1 {
		return 1
	}
	if days > 30 {
		return 30
	}
	return days
}
