// Package store owns the client-side task collection. It is the single
// writer: every mutation goes to the persistence collaborator first and is
// applied locally only after the remote confirms, so the collection always
// reflects persisted state. All access happens on the UI's single logical
// thread; the store does no locking of its own.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"teamboard/internal/domain"
	"teamboard/internal/metrics"
	"teamboard/internal/notify"
	"teamboard/internal/rest"
)

// Remote is the external task persistence collaborator.
type Remote interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch rest.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Store holds the task collection in insertion order.
type Store struct {
	remote   Remote
	notifier notify.Notifier
	Now      func() time.Time

	tasks []domain.Task
}

// New builds a task store. notifier may be nil when no observer cares.
func New(remote Remote, notifier notify.Notifier) *Store {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Store{
		remote:   remote,
		notifier: notifier,
		Now:      time.Now,
	}
}

// Load replaces the collection with the remote's current state.
func (s *Store) Load(ctx context.Context) error {
	tasks, err := s.remote.ListTasks(ctx)
	if err != nil {
		return err
	}
	s.tasks = tasks
	return nil
}

// Draft is a task minus the store-assigned fields.
type Draft struct {
	Title       string
	Description string
	Progress    int
	DueDate     string
	AssignedTo  string
	AssignedBy  string
	Subtasks    []domain.Subtask
}

func (d Draft) validate() error {
	if d.Title == "" {
		return domain.ValidationError{Field: "title"}
	}
	if d.Description == "" {
		return domain.ValidationError{Field: "description"}
	}
	if d.AssignedTo == "" {
		return domain.ValidationError{Field: "assigned_to"}
	}
	if d.DueDate == "" {
		return domain.ValidationError{Field: "due_date"}
	}
	if _, err := time.Parse(domain.DateFormat, d.DueDate); err != nil {
		return domain.ValidationError{Field: "due_date", Reason: "must be YYYY-MM-DD"}
	}
	if d.Progress < 0 || d.Progress > 100 {
		return domain.ValidationError{Field: "progress", Reason: "must be in 0..100"}
	}
	return nil
}

// Create assigns id and creation date, persists the draft, and appends the
// confirmed task. The form layer is expected to pre-validate; the store
// re-validates anyway.
func (s *Store) Create(ctx context.Context, d Draft) (domain.Task, error) {
	if err := d.validate(); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          uuid.New().String(),
		Title:       d.Title,
		Description: d.Description,
		Progress:    d.Progress,
		DueDate:     d.DueDate,
		AssignedTo:  d.AssignedTo,
		AssignedBy:  d.AssignedBy,
		CreatedAt:   s.now().UTC().Format(domain.DateFormat),
		Subtasks:    d.Subtasks,
	}
	if len(t.Subtasks) > 0 {
		t.Progress = metrics.SubtaskProgress(t.Subtasks)
	}
	confirmed, err := s.remote.CreateTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	s.tasks = append(s.tasks, confirmed)
	s.notifier.Notify(notify.Notification{
		Title:  "Task created",
		Detail: fmt.Sprintf("%q was created.", confirmed.Title),
	})
	return confirmed, nil
}

// UpdateProgress sets a task's progress (and optionally a new due date).
// Observers are told the old and new values. Tasks with subtasks derive
// their progress and reject direct sets.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress int, newDueDate *string) error {
	idx, ok := s.indexOf(id)
	if !ok {
		return domain.ErrNotFound
	}
	if len(s.tasks[idx].Subtasks) > 0 {
		return domain.ValidationError{Field: "progress", Reason: "derived from subtasks; update the subtasks instead"}
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	old := s.tasks[idx].Progress
	patch := rest.TaskPatch{Progress: &progress}
	if newDueDate != nil {
		if _, err := time.Parse(domain.DateFormat, *newDueDate); err != nil {
			return domain.ValidationError{Field: "due_date", Reason: "must be YYYY-MM-DD"}
		}
		patch.DueDate = newDueDate
	}
	confirmed, err := s.remote.UpdateTask(ctx, id, patch)
	if err != nil {
		return err
	}
	s.applyConfirmed(idx, confirmed)
	s.notifier.Notify(notify.Notification{
		Title:       "Progress updated",
		Detail:      fmt.Sprintf("Progress moved from %d%% to %d%%.", old, confirmed.Progress),
		OldProgress: &old,
		NewProgress: &confirmed.Progress,
	})
	return nil
}

// UpdateSubtasks overwrites a task's checklist; progress is recomputed from
// it (the subtasks are the source of truth while any exist).
func (s *Store) UpdateSubtasks(ctx context.Context, id string, subtasks []domain.Subtask) error {
	idx, ok := s.indexOf(id)
	if !ok {
		return domain.ErrNotFound
	}
	old := s.tasks[idx].Progress
	derived := metrics.SubtaskProgress(subtasks)
	confirmed, err := s.remote.UpdateTask(ctx, id, rest.TaskPatch{
		Subtasks: &subtasks,
		Progress: &derived,
	})
	if err != nil {
		return err
	}
	s.applyConfirmed(idx, confirmed)
	s.notifier.Notify(notify.Notification{
		Title:       "Subtasks updated",
		Detail:      fmt.Sprintf("Progress moved from %d%% to %d%%.", old, confirmed.Progress),
		OldProgress: &old,
		NewProgress: &confirmed.Progress,
	})
	return nil
}

// Delete removes a task. A second delete of the same id reports ErrNotFound
// and leaves the collection unchanged.
func (s *Store) Delete(ctx context.Context, id string) error {
	idx, ok := s.indexOf(id)
	if !ok {
		return domain.ErrNotFound
	}
	title := s.tasks[idx].Title
	if err := s.remote.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.notifier.Notify(notify.Notification{
		Title:  "Task removed",
		Detail: fmt.Sprintf("%q was removed.", title),
	})
	return nil
}

// UpdateAlertSettings stores a per-task alert override. Alert configuration
// is local state only; no remote round trip.
func (s *Store) UpdateAlertSettings(id string, alert domain.TaskAlert) error {
	idx, ok := s.indexOf(id)
	if !ok {
		return domain.ErrNotFound
	}
	a := alert
	s.tasks[idx].Alert = &a
	return nil
}

// GetByID looks up a task.
func (s *Store) GetByID(id string) (domain.Task, bool) {
	if idx, ok := s.indexOf(id); ok {
		return s.tasks[idx], true
	}
	return domain.Task{}, false
}

// List returns the whole collection in insertion order.
func (s *Store) List() []domain.Task {
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// ListForUser returns the tasks assigned to userID, in insertion order.
func (s *Store) ListForUser(userID string) []domain.Task {
	var out []domain.Task
	for _, t := range s.tasks {
		if t.AssignedTo == userID {
			out = append(out, t)
		}
	}
	return out
}

// TeamProgress is the rounded average progress across the collection, 0
// when empty.
func (s *Store) TeamProgress() int {
	return metrics.TeamProgress(s.tasks)
}

// applyConfirmed merges a remote confirmation, preserving the immutable
// fields and local-only alert state.
func (s *Store) applyConfirmed(idx int, confirmed domain.Task) {
	alert := s.tasks[idx].Alert
	confirmed.ID = s.tasks[idx].ID
	confirmed.CreatedAt = s.tasks[idx].CreatedAt
	confirmed.Alert = alert
	s.tasks[idx] = confirmed
}

func (s *Store) indexOf(id string) (int, bool) {
	for i, t := range s.tasks {
		if t.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
