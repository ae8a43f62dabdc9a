package domain

import "time"

// TaskStatus is a node in the task status FSM (spec.md §4.F).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the status has no outbound transitions.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskCancelled, TaskFailed:
		return true
	default:
		return false
	}
}

// TaskPriority ranks tasks for display and scheduling purposes.
type TaskPriority string

const (
	PriorityLow      TaskPriority = "low"
	PriorityMedium   TaskPriority = "medium"
	PriorityHigh     TaskPriority = "high"
	PriorityCritical TaskPriority = "critical"
)

// Task is a unit of work with status, priority, and graph relations.
type Task struct {
	TaskID         string
	Title          string
	Description    string
	Status         TaskStatus
	Priority       TaskPriority
	CreatedBy      string
	AssignedTo     *string
	ParentTask     *string
	DependsOnTasks []string
	Tags           []string
	DisplayOrder   int
	DueDate        *time.Time
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const (
	MaxTitleLen       = 500
	MaxDescriptionLen = 10000
	MaxTags           = 20
)
