package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/task-tracker/internal/domain/entity"
)

func newTaskServiceFixture(tasks ...*entity.Task) (*fakeTaskRepo, *fakeHistoryRepo, TaskService) {
	taskRepo := newFakeTaskRepo(tasks...)
	historyRepo := &fakeHistoryRepo{}
	tx := &fakeTxManager{taskRepo: taskRepo, historyRepo: historyRepo}
	transition := NewTransitionService(taskRepo, historyRepo, tx, testLogger{})
	svc := NewTaskService(taskRepo, newFakeTagRepo(), transition, tx, testLogger{})
	return taskRepo, historyRepo, svc
}

var (
	manager   = &entity.User{ID: 1, Role: entity.RoleManager}
	developer = &entity.User{ID: 2, Role: entity.RoleDeveloper}
	auditor   = &entity.User{ID: 3, Role: entity.RoleAuditor}
)

func TestCreateTask_Defaults(t *testing.T) {
	_, _, svc := newTaskServiceFixture()

	task, err := svc.CreateTask(context.Background(), CreateTaskInput{
		Title:      "Write onboarding doc",
		AssignedTo: 2,
	}, manager)

	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, task.Status)
	assert.Equal(t, entity.PriorityMedium, task.Priority)
	assert.Equal(t, int64(1), task.CreatedBy)
	assert.NotZero(t, task.ID)
}

func TestCreateTask_AssignmentRules(t *testing.T) {
	tests := []struct {
		name       string
		actor      *entity.User
		assignedTo int64
		wantErr    error
	}{
		{name: "manager assigns to anyone", actor: manager, assignedTo: 2},
		{name: "developer assigns to self", actor: developer, assignedTo: 2},
		{name: "developer cannot assign to others", actor: developer, assignedTo: 1, wantErr: ErrWriteForbidden},
		{name: "auditor cannot create", actor: auditor, assignedTo: 3, wantErr: ErrWriteForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, svc := newTaskServiceFixture()

			_, err := svc.CreateTask(context.Background(), CreateTaskInput{
				Title:      "t",
				AssignedTo: tt.assignedTo,
			}, tt.actor)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateTask_UnknownParent(t *testing.T) {
	_, _, svc := newTaskServiceFixture()

	_, err := svc.CreateTask(context.Background(), CreateTaskInput{
		Title:        "orphan",
		AssignedTo:   2,
		ParentTaskID: int64Ptr(99),
	}, manager)

	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestCreateTask_WithTags(t *testing.T) {
	_, _, svc := newTaskServiceFixture()

	task, err := svc.CreateTask(context.Background(), CreateTaskInput{
		Title:      "tagged",
		AssignedTo: 2,
		Tags:       []string{"backend", "urgent"},
	}, manager)

	require.NoError(t, err)
	require.Len(t, task.Tags, 2)
	assert.Equal(t, "backend", task.Tags[0].Name)
	assert.Equal(t, "urgent", task.Tags[1].Name)
}

func TestGetTask_Unknown(t *testing.T) {
	_, _, svc := newTaskServiceFixture()

	_, err := svc.GetTask(context.Background(), 7)

	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestUpdateTask_AuditorForbidden(t *testing.T) {
	_, _, svc := newTaskServiceFixture(
		&entity.Task{ID: 1, Status: entity.StatusPending},
	)

	title := "new"
	_, err := svc.UpdateTask(context.Background(), 1, UpdateTaskInput{Title: &title}, auditor)

	assert.ErrorIs(t, err, ErrWriteForbidden)
}

func TestUpdateTask_SelfParentRejected(t *testing.T) {
	_, _, svc := newTaskServiceFixture(
		&entity.Task{ID: 1, Status: entity.StatusPending},
	)

	_, err := svc.UpdateTask(context.Background(), 1, UpdateTaskInput{ParentTaskID: int64Ptr(1)}, manager)

	assert.ErrorIs(t, err, ErrSelfParentTask)
}

func TestUpdateTask_FieldEdits(t *testing.T) {
	taskRepo, _, svc := newTaskServiceFixture(
		&entity.Task{ID: 1, Title: "old", Status: entity.StatusPending, Priority: entity.PriorityLow, AssignedTo: 2},
	)

	title := "new title"
	hours := 8.0
	task, err := svc.UpdateTask(context.Background(), 1, UpdateTaskInput{
		Title:          &title,
		EstimatedHours: &hours,
	}, developer)

	require.NoError(t, err)
	assert.Equal(t, "new title", task.Title)
	require.NotNil(t, task.EstimatedHours)
	assert.Equal(t, 8.0, *task.EstimatedHours)
	// Untouched fields survive.
	assert.Equal(t, entity.PriorityLow, taskRepo.tasks[1].Priority)
	assert.Equal(t, entity.StatusPending, taskRepo.tasks[1].Status)
}

func TestUpdateTask_StatusGoesThroughTransitionEngine(t *testing.T) {
	taskRepo, historyRepo, svc := newTaskServiceFixture(
		&entity.Task{ID: 1, Status: entity.StatusInProgress, AssignedTo: 2},
		&entity.Task{ID: 2, Status: entity.StatusPending, ParentTaskID: int64Ptr(1), AssignedTo: 2},
	)

	status := entity.StatusCompleted
	task, err := svc.UpdateTask(context.Background(), 1, UpdateTaskInput{Status: &status}, manager)

	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, task.Status)
	// The cascade ran inside the same update.
	assert.Equal(t, entity.StatusCompleted, taskRepo.tasks[2].Status)
	assert.Len(t, historyRepo.entries, 2)
}

func TestUpdateTask_CascadeViolationRollsBackFieldEdits(t *testing.T) {
	taskRepo, historyRepo, svc := newTaskServiceFixture(
		&entity.Task{ID: 1, Title: "parent", Status: entity.StatusInProgress, AssignedTo: 2},
		&entity.Task{ID: 2, Status: entity.StatusBlocked, ParentTaskID: int64Ptr(1), AssignedTo: 2},
	)

	status := entity.StatusCompleted
	title := "renamed"
	_, err := svc.UpdateTask(context.Background(), 1, UpdateTaskInput{Status: &status, Title: &title}, manager)

	require.ErrorIs(t, err, ErrChildBlockingCompletion)
	assert.Equal(t, "parent", taskRepo.tasks[1].Title)
	assert.Equal(t, entity.StatusInProgress, taskRepo.tasks[1].Status)
	assert.Empty(t, historyRepo.entries)
}

func TestUpdateTask_ManualPriorityEditKeepsLatch(t *testing.T) {
	taskRepo, _, svc := newTaskServiceFixture(
		&entity.Task{ID: 1, Status: entity.StatusPending, Priority: entity.PriorityHigh, PriorityEscalated: true, AssignedTo: 2},
	)

	priority := entity.PriorityLow
	task, err := svc.UpdateTask(context.Background(), 1, UpdateTaskInput{Priority: &priority}, manager)

	require.NoError(t, err)
	assert.Equal(t, entity.PriorityLow, task.Priority)
	assert.True(t, taskRepo.tasks[1].PriorityEscalated)
}

func TestDeleteTask_ManagerOnly(t *testing.T) {
	tests := []struct {
		name    string
		actor   *entity.User
		wantErr error
	}{
		{name: "manager deletes", actor: manager},
		{name: "developer cannot delete", actor: developer, wantErr: ErrWriteForbidden},
		{name: "auditor cannot delete", actor: auditor, wantErr: ErrWriteForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taskRepo, _, svc := newTaskServiceFixture(
				&entity.Task{ID: 1, Status: entity.StatusPending},
			)

			err := svc.DeleteTask(context.Background(), 1, tt.actor)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, taskRepo.tasks, int64(1))
			} else {
				assert.NoError(t, err)
				assert.NotContains(t, taskRepo.tasks, int64(1))
			}
		})
	}
}

func TestDeleteTask_OrphansChildren(t *testing.T) {
	taskRepo, _, svc := newTaskServiceFixture(
		&entity.Task{ID: 1, Status: entity.StatusPending},
		&entity.Task{ID: 2, Status: entity.StatusPending, ParentTaskID: int64Ptr(1)},
	)

	err := svc.DeleteTask(context.Background(), 1, manager)

	require.NoError(t, err)
	assert.Nil(t, taskRepo.tasks[2].ParentTaskID)
}
