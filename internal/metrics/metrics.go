// Package metrics computes derived task views: urgency classification,
// subtask-driven progress, and team/member aggregates. Everything here is a
// pure function of its inputs; "now" is always passed in so callers (and
// tests) control the clock.
package metrics

import (
	"math"
	"time"

	"teamboard/internal/domain"
)

// DueSoonWindow is how far ahead of "now" a pending task counts as due soon.
const DueSoonWindow = 3 * 24 * time.Hour

type Status string

const (
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
	StatusDueSoon    Status = "due_soon"
	StatusInProgress Status = "in_progress"
)

// Classify buckets a task into exactly one status. Priority order:
// completed beats overdue beats due-soon. A task with an unparseable due
// date is never overdue or due soon.
func Classify(t domain.Task, now time.Time) Status {
	if t.Progress == 100 {
		return StatusCompleted
	}
	due, err := time.Parse(domain.DateFormat, t.DueDate)
	if err != nil {
		return StatusInProgress
	}
	if due.Before(now) {
		return StatusOverdue
	}
	if !due.After(now.Add(DueSoonWindow)) {
		return StatusDueSoon
	}
	return StatusInProgress
}

// SubtaskProgress derives a 0..100 progress value from a checklist.
// Empty checklists derive to 0.
func SubtaskProgress(subtasks []domain.Subtask) int {
	if len(subtasks) == 0 {
		return 0
	}
	completed := 0
	for _, s := range subtasks {
		if s.Completed {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(subtasks))))
}

// TeamProgress is the rounded mean progress across all tasks, 0 when there
// are none.
func TeamProgress(tasks []domain.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	total := 0
	for _, t := range tasks {
		total += t.Progress
	}
	return int(math.Round(float64(total) / float64(len(tasks))))
}

// MemberAggregate summarizes one user's slice of the task collection.
type MemberAggregate struct {
	UserID      string `json:"user_id"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Pending     int    `json:"pending"`
	Urgent      int    `json:"urgent"`
	AvgProgress int    `json:"avg_progress"`
}

// Aggregate computes per-member counters over the tasks assigned to userID.
// Urgent counts pending tasks whose due date is on or before now.
func Aggregate(userID string, tasks []domain.Task, now time.Time) MemberAggregate {
	agg := MemberAggregate{UserID: userID}
	sum := 0
	for _, t := range tasks {
		if t.AssignedTo != userID {
			continue
		}
		agg.Total++
		sum += t.Progress
		if t.Progress == 100 {
			agg.Completed++
			continue
		}
		agg.Pending++
		if due, err := time.Parse(domain.DateFormat, t.DueDate); err == nil && !due.After(now) {
			agg.Urgent++
		}
	}
	if agg.Total > 0 {
		agg.AvgProgress = int(math.Round(float64(sum) / float64(agg.Total)))
	}
	return agg
}

// DaysRemaining returns the whole days until the due date, rounding partial
// days up. Past due dates yield negative values.
func DaysRemaining(dueDate string, now time.Time) int {
	due, err := time.Parse(domain.DateFormat, dueDate)
	if err != nil {
		return 0
	}
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}
