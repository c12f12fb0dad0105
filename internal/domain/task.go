package domain

import (
	"fmt"
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// Task is the demo-app work item. Owner is required; assignee is optional.
type Task struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	OwnerID     int64        `json:"owner_id"`
	AssigneeID  *int64       `json:"assignee_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Populated only when the read joined the users table.
	OwnerName    string `json:"owner_name,omitempty"`
	AssigneeName string `json:"assignee_name,omitempty"`
}

// ValidateTask checks the user-supplied task fields. Foreign-key existence is
// the store's job; only value-level rules live here.
func ValidateTask(title string, status TaskStatus, priority TaskPriority) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(title) > 200 {
		return fmt.Errorf("%w: title must be at most 200 characters", ErrValidation)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: status must be one of todo, in-progress, done; got %q", ErrValidation, status)
	}
	if !priority.Valid() {
		return fmt.Errorf("%w: priority must be one of low, medium, high; got %q", ErrValidation, priority)
	}
	return nil
}
