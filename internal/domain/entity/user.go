package entity

import "time"

// User is the actor identity supplied by the request-handling layer.
// Authentication itself happens upstream; the core only needs the role
// for write-scope rules and rate-limit policy lookup.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	Timezone      string    `json:"timezone,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Role constants
const (
	RoleManager   = "manager"
	RoleDeveloper = "developer"
	RoleAuditor   = "auditor"
)
