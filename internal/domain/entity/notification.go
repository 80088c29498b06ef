package entity

import "time"

// Notification is a fire-and-forget message to a user about one of their
// tasks. The core only writes these; delivery is the sink's problem.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TaskID    int64     `json:"task_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
