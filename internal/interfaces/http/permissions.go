package http

import (
	"time"

	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// canUpdateNow enforces the temporal update rule: developers may only update
// tasks inside the configured workday in their own timezone, except for
// critical-priority tasks. Managers are unrestricted. The rule applies to
// the attempt only; it is checked here, before the transition engine runs.
func (s *Server) canUpdateNow(actor *entity.User, task *entity.Task, now time.Time) bool {
	if actor.Role == entity.RoleManager {
		return true
	}
	if actor.Role != entity.RoleDeveloper {
		return false
	}
	if task.Priority == entity.PriorityCritical {
		return true
	}

	tz := actor.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= s.config.WorkdayStartHour*60 && minutes <= s.config.WorkdayEndHour*60
}
