package entity

import "time"

// Task is the central tracked entity. Tasks form a forest through ParentTaskID;
// cascade rules only ever touch the immediate parent or the direct children of
// the task being transitioned, never further up or down the tree in one step.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Status   string `json:"status"`
	Priority string `json:"priority"`

	AssignedTo int64 `json:"assigned_to"`
	CreatedBy  int64 `json:"created_by"`

	// ParentTaskID is nil for root tasks. A task is never its own parent;
	// that is rejected on every parent assignment.
	ParentTaskID *int64 `json:"parent_task,omitempty"`

	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`

	Tags []Tag `json:"tags,omitempty"`

	// PriorityEscalated is a one-shot latch: once set by the escalation
	// sweep it is never cleared, not even by manual priority edits.
	PriorityEscalated bool `json:"priority_escalated"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task status constants
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusBlocked    = "blocked"
	StatusCompleted  = "completed"
)

// Task priority constants, ordered low < medium < high < critical
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// priorityOrder is the escalation ladder.
var priorityOrder = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// ValidStatus reports whether s is one of the four task statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusCompleted:
		return true
	}
	return false
}

// ValidPriority reports whether p is a recognized priority level.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// NextPriority returns the priority one step above current. Critical saturates.
// The second return value is false when current is not a recognized level;
// callers treat that as a skip, not an error.
func NextPriority(current string) (string, bool) {
	for i, p := range priorityOrder {
		if p == current {
			if i == len(priorityOrder)-1 {
				return p, true
			}
			return priorityOrder[i+1], true
		}
	}
	return current, false
}

// IsOverdue reports whether the task has a deadline in the past and is not completed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && t.Deadline.Before(now) && t.Status != StatusCompleted
}
