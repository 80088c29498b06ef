package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/task-tracker/internal/domain/entity"
)

func TestCanUpdateNow(t *testing.T) {
	server := &Server{config: ServerConfig{WorkdayStartHour: 9, WorkdayEndHour: 18}}

	// 14:00 UTC, inside the workday for UTC developers.
	afternoon := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	// 03:00 UTC, well outside it.
	night := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		actor *entity.User
		task  *entity.Task
		now   time.Time
		want  bool
	}{
		{
			name:  "manager any time",
			actor: &entity.User{Role: entity.RoleManager},
			task:  &entity.Task{Priority: entity.PriorityLow},
			now:   night,
			want:  true,
		},
		{
			name:  "developer inside workday",
			actor: &entity.User{Role: entity.RoleDeveloper, Timezone: "UTC"},
			task:  &entity.Task{Priority: entity.PriorityLow},
			now:   afternoon,
			want:  true,
		},
		{
			name:  "developer outside workday",
			actor: &entity.User{Role: entity.RoleDeveloper, Timezone: "UTC"},
			task:  &entity.Task{Priority: entity.PriorityLow},
			now:   night,
			want:  false,
		},
		{
			name:  "developer critical task any time",
			actor: &entity.User{Role: entity.RoleDeveloper, Timezone: "UTC"},
			task:  &entity.Task{Priority: entity.PriorityCritical},
			now:   night,
			want:  true,
		},
		{
			name: "developer workday follows own timezone",
			// 03:00 UTC is 11:00 in Shanghai.
			actor: &entity.User{Role: entity.RoleDeveloper, Timezone: "Asia/Shanghai"},
			task:  &entity.Task{Priority: entity.PriorityMedium},
			now:   night,
			want:  true,
		},
		{
			name: "developer evening in own timezone",
			// 14:00 UTC is 22:00 in Shanghai.
			actor: &entity.User{Role: entity.RoleDeveloper, Timezone: "Asia/Shanghai"},
			task:  &entity.Task{Priority: entity.PriorityMedium},
			now:   afternoon,
			want:  false,
		},
		{
			name:  "empty timezone falls back to UTC",
			actor: &entity.User{Role: entity.RoleDeveloper},
			task:  &entity.Task{Priority: entity.PriorityLow},
			now:   afternoon,
			want:  true,
		},
		{
			name:  "unparseable timezone falls back to UTC",
			actor: &entity.User{Role: entity.RoleDeveloper, Timezone: "Mars/Olympus"},
			task:  &entity.Task{Priority: entity.PriorityLow},
			now:   night,
			want:  false,
		},
		{
			name:  "auditor never",
			actor: &entity.User{Role: entity.RoleAuditor},
			task:  &entity.Task{Priority: entity.PriorityCritical},
			now:   afternoon,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, server.canUpdateNow(tt.actor, tt.task, tt.now))
		})
	}
}
