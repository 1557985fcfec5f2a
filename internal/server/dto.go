package server

import "teamboard/internal/domain"

// Request payloads

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type CreateTaskRequest struct {
	ID          *string          `json:"id,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Progress    int              `json:"progress" minimum:"0" maximum:"100"`
	DueDate     string           `json:"due_date" format:"date"`
	AssignedTo  string           `json:"assigned_to"`
	AssignedBy  string           `json:"assigned_by,omitempty"`
	CreatedAt   *string          `json:"created_at,omitempty" format:"date"`
	Subtasks    []domain.Subtask `json:"subtasks,omitempty"`
}

type UpdateTaskRequest struct {
	Progress *int              `json:"progress,omitempty" minimum:"0" maximum:"100"`
	DueDate  *string           `json:"due_date,omitempty" format:"date"`
	Subtasks *[]domain.Subtask `json:"subtasks,omitempty"`
}

// Response payloads

type LoginResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type TaskListResponse struct {
	Items []domain.Task `json:"items"`
}

type UserListResponse struct {
	Items []domain.User `json:"items"`
}

type EventListResponse struct {
	Items []domain.Event `json:"items"`
}
