package entity

// Tag labels tasks. Names are unique; tags are created on demand when a task
// references a name that does not exist yet.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
