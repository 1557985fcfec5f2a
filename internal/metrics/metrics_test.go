package metrics_test

import (
	"testing"
	"time"

	"teamboard/internal/domain"
	"teamboard/internal/metrics"
)

var now = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func day(offset int) string {
	return now.AddDate(0, 0, offset).Format(domain.DateFormat)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		task domain.Task
		want metrics.Status
	}{
		{"completed wins over overdue", domain.Task{Progress: 100, DueDate: day(-5)}, metrics.StatusCompleted},
		{"due tomorrow is due soon", domain.Task{Progress: 50, DueDate: day(1)}, metrics.StatusDueSoon},
		{"due yesterday is overdue", domain.Task{Progress: 50, DueDate: day(-1)}, metrics.StatusOverdue},
		{"due in exactly three days is due soon", domain.Task{Progress: 0, DueDate: day(3)}, metrics.StatusDueSoon},
		{"due in four days is in progress", domain.Task{Progress: 0, DueDate: day(4)}, metrics.StatusInProgress},
		{"unparseable due date is in progress", domain.Task{Progress: 0, DueDate: "soon"}, metrics.StatusInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := metrics.Classify(tc.task, now); got != tc.want {
				t.Fatalf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyExhaustiveAndExclusive(t *testing.T) {
	// Every (progress, due offset) pair must land in exactly one bucket.
	for _, progress := range []int{0, 50, 100} {
		for offset := -5; offset <= 5; offset++ {
			task := domain.Task{Progress: progress, DueDate: day(offset)}
			matches := 0
			got := metrics.Classify(task, now)
			for _, s := range []metrics.Status{
				metrics.StatusCompleted, metrics.StatusOverdue, metrics.StatusDueSoon, metrics.StatusInProgress,
			} {
				if got == s {
					matches++
				}
			}
			if matches != 1 {
				t.Fatalf("progress=%d offset=%d classified %d times", progress, offset, matches)
			}
		}
	}
}

func TestClassifyDoesNotMutateNow(t *testing.T) {
	ref := now
	task := domain.Task{Progress: 50, DueDate: day(2)}
	first := metrics.Classify(task, ref)
	for i := 0; i < 10; i++ {
		if got := metrics.Classify(task, ref); got != first {
			t.Fatalf("classification drifted on call %d: %s != %s", i, got, first)
		}
	}
	if !ref.Equal(now) {
		t.Fatalf("now mutated: %s", ref)
	}
}

func TestSubtaskProgress(t *testing.T) {
	if got := metrics.SubtaskProgress(nil); got != 0 {
		t.Fatalf("empty = %d, want 0", got)
	}
	subs := []domain.Subtask{
		{ID: "1", Completed: true},
		{ID: "2", Completed: false},
		{ID: "3", Completed: false},
	}
	if got := metrics.SubtaskProgress(subs); got != 33 {
		t.Fatalf("1/3 = %d, want 33", got)
	}
	subs[1].Completed = true
	if got := metrics.SubtaskProgress(subs); got != 67 {
		t.Fatalf("2/3 = %d, want 67", got)
	}
}

func TestTeamProgress(t *testing.T) {
	if got := metrics.TeamProgress(nil); got != 0 {
		t.Fatalf("empty = %d, want 0", got)
	}
	tasks := []domain.Task{{Progress: 70}, {Progress: 30}}
	if got := metrics.TeamProgress(tasks); got != 50 {
		t.Fatalf("avg = %d, want 50", got)
	}
}

func TestAggregate(t *testing.T) {
	tasks := []domain.Task{
		{AssignedTo: "u1", Progress: 100, DueDate: day(-2)},
		{AssignedTo: "u1", Progress: 40, DueDate: day(-1)},
		{AssignedTo: "u1", Progress: 60, DueDate: day(5)},
		{AssignedTo: "u2", Progress: 10, DueDate: day(0)},
	}
	agg := metrics.Aggregate("u1", tasks, now)
	if agg.Total != 3 || agg.Completed != 1 || agg.Pending != 2 {
		t.Fatalf("counts = %+v", agg)
	}
	if agg.Urgent != 1 {
		t.Fatalf("urgent = %d, want 1", agg.Urgent)
	}
	if agg.AvgProgress != 67 {
		t.Fatalf("avg = %d, want 67", agg.AvgProgress)
	}
	empty := metrics.Aggregate("nobody", tasks, now)
	if empty.Total != 0 || empty.AvgProgress != 0 {
		t.Fatalf("empty member = %+v", empty)
	}
}

func TestDaysRemaining(t *testing.T) {
	if got := metrics.DaysRemaining(day(4), now); got != 4 {
		t.Fatalf("future = %d, want 4", got)
	}
	if got := metrics.DaysRemaining(day(-2), now); got != -2 {
		t.Fatalf("past = %d, want -2", got)
	}
	if got := metrics.DaysRemaining(day(0), now); got != 0 {
		t.Fatalf("today = %d, want 0", got)
	}
}
