package entity

import "time"

// TaskHistory is an append-only record of a status change. Rows are written
// exclusively by status transitions (direct or cascaded) and are never
// updated or deleted by application logic.
type TaskHistory struct {
	ID             int64     `json:"id"`
	TaskID         int64     `json:"task_id"`
	ChangedBy      *int64    `json:"changed_by,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Timestamp      time.Time `json:"timestamp"`

	// Notes carries provenance for cascaded changes, e.g.
	// "Cascaded from parent task 42".
	Notes string `json:"notes,omitempty"`
}
