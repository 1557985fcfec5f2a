package domain

// DateFormat is the wire format for all dates (ISO-8601 date, no time part).
const DateFormat = "2006-01-02"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type NotificationPreferences struct {
	NewTasks    bool `json:"new_tasks"`
	TaskUpdates bool `json:"task_updates"`
	Mentions    bool `json:"mentions"`
}

type User struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Email         string                   `json:"email"`
	Role          string                   `json:"role" enum:"admin,member"`
	Notifications *NotificationPreferences `json:"notification_preferences,omitempty"`
}

type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TaskAlert is a per-task override of the global alert settings.
type TaskAlert struct {
	Enabled       bool `json:"enabled"`
	DaysBeforeDue int  `json:"days_before_due" minimum:"1" maximum:"30"`
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Progress    int        `json:"progress" minimum:"0" maximum:"100"`
	DueDate     string     `json:"due_date" format:"date"`
	AssignedTo  string     `json:"assigned_to"`
	AssignedBy  string     `json:"assigned_by"`
	CreatedAt   string     `json:"created_at" format:"date"`
	Subtasks    []Subtask  `json:"subtasks,omitempty"`
	Alert       *TaskAlert `json:"alert_settings,omitempty"`
}

// AlertSettings are the team-wide defaults for due-date alerts.
type AlertSettings struct {
	DefaultDaysBeforeDue int  `json:"default_days_before_due" minimum:"1" maximum:"30"`
	EnableEmailAlerts    bool `json:"enable_email_alerts"`
}

// Event is one audit log entry written by the backend on task mutations.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
