package service

import (
	"context"
	"sort"
	"time"

	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// testLogger discards everything.
type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeTaskRepo is an in-memory TaskRepository. Tests mutate the tasks map
// directly to seed state; optional func fields override single methods.
type fakeTaskRepo struct {
	tasks map[int64]*entity.Task

	nextID int64

	// updates records the ids passed to Update, in call order
	updates []int64

	listEscalatableFunc func(ctx context.Context, now, until time.Time) ([]*entity.Task, error)
}

func newFakeTaskRepo(tasks ...*entity.Task) *fakeTaskRepo {
	repo := &fakeTaskRepo{tasks: make(map[int64]*entity.Task)}
	for _, task := range tasks {
		repo.tasks[task.ID] = task
		if task.ID > repo.nextID {
			repo.nextID = task.ID
		}
	}
	return repo
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *entity.Task) error {
	r.nextID++
	task.ID = r.nextID
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, nil
	}
	copied := *task
	return &copied, nil
}

func (r *fakeTaskRepo) GetChildren(ctx context.Context, parentID int64) ([]*entity.Task, error) {
	var children []*entity.Task
	for _, task := range r.tasks {
		if task.ParentTaskID != nil && *task.ParentTaskID == parentID {
			copied := *task
			children = append(children, &copied)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (r *fakeTaskRepo) List(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	var all []*entity.Task
	for _, task := range r.tasks {
		copied := *task
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return all, nil
}

func (r *fakeTaskRepo) ListByAssignee(ctx context.Context, userID int64) ([]*entity.Task, error) {
	var out []*entity.Task
	for _, task := range r.tasks {
		if task.AssignedTo == userID {
			copied := *task
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTaskRepo) ListEscalatable(ctx context.Context, now, until time.Time) ([]*entity.Task, error) {
	if r.listEscalatableFunc != nil {
		return r.listEscalatableFunc(ctx, now, until)
	}
	var out []*entity.Task
	for _, task := range r.tasks {
		if task.Status == entity.StatusCompleted || task.PriorityEscalated || task.Deadline == nil {
			continue
		}
		if task.Deadline.Before(now) || task.Deadline.After(until) {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *entity.Task) error {
	copied := *task
	r.tasks[task.ID] = &copied
	r.updates = append(r.updates, task.ID)
	return nil
}

func (r *fakeTaskRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	if task, ok := r.tasks[id]; ok {
		task.Status = status
		r.updates = append(r.updates, id)
	}
	return nil
}

func (r *fakeTaskRepo) Delete(ctx context.Context, id int64) error {
	delete(r.tasks, id)
	for _, task := range r.tasks {
		if task.ParentTaskID != nil && *task.ParentTaskID == id {
			task.ParentTaskID = nil
		}
	}
	return nil
}

func (r *fakeTaskRepo) CountByStatus(ctx context.Context, userID *int64) (map[string]int, error) {
	counts := make(map[string]int)
	for _, task := range r.tasks {
		if userID != nil && task.AssignedTo != *userID {
			continue
		}
		counts[task.Status]++
	}
	return counts, nil
}

func (r *fakeTaskRepo) CountOverdue(ctx context.Context, userID *int64, now time.Time) (int, error) {
	count := 0
	for _, task := range r.tasks {
		if userID != nil && task.AssignedTo != *userID {
			continue
		}
		if task.IsOverdue(now) {
			count++
		}
	}
	return count, nil
}

func (r *fakeTaskRepo) HoursForCompleted(ctx context.Context, userID *int64) ([][2]float64, error) {
	var pairs [][2]float64
	for _, task := range r.tasks {
		if userID != nil && task.AssignedTo != *userID {
			continue
		}
		if task.Status != entity.StatusCompleted || task.EstimatedHours == nil || task.ActualHours == nil {
			continue
		}
		pairs = append(pairs, [2]float64{*task.EstimatedHours, *task.ActualHours})
	}
	return pairs, nil
}

// fakeHistoryRepo appends in memory.
type fakeHistoryRepo struct {
	entries []*entity.TaskHistory
}

func (r *fakeHistoryRepo) Create(ctx context.Context, history *entity.TaskHistory) error {
	copied := *history
	r.entries = append(r.entries, &copied)
	return nil
}

func (r *fakeHistoryRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskHistory, error) {
	var out []*entity.TaskHistory
	for _, entry := range r.entries {
		if entry.TaskID == taskID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) List(ctx context.Context, limit, offset int) ([]*entity.TaskHistory, error) {
	return r.entries, nil
}

// fakeTagRepo assigns tag ids by name order of first use.
type fakeTagRepo struct {
	tags     map[string]int64
	taskTags map[int64][]int64
	nextID   int64
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{tags: make(map[string]int64), taskTags: make(map[int64][]int64)}
}

func (r *fakeTagRepo) GetOrCreate(ctx context.Context, name string) (*entity.Tag, error) {
	if id, ok := r.tags[name]; ok {
		return &entity.Tag{ID: id, Name: name}, nil
	}
	r.nextID++
	r.tags[name] = r.nextID
	return &entity.Tag{ID: r.nextID, Name: name}, nil
}

func (r *fakeTagRepo) GetByTaskID(ctx context.Context, taskID int64) ([]entity.Tag, error) {
	var out []entity.Tag
	for _, id := range r.taskTags[taskID] {
		for name, tagID := range r.tags {
			if tagID == id {
				out = append(out, entity.Tag{ID: id, Name: name})
			}
		}
	}
	return out, nil
}

func (r *fakeTagRepo) SetTaskTags(ctx context.Context, taskID int64, tagIDs []int64) error {
	r.taskTags[taskID] = tagIDs
	return nil
}

// fakeSink records notifications.
type fakeSink struct {
	notifications []*entity.Notification
}

func (s *fakeSink) Notify(ctx context.Context, n *entity.Notification) error {
	copied := *n
	s.notifications = append(s.notifications, &copied)
	return nil
}

// fakeTxManager snapshots the task and history fakes before the outer
// transaction body and restores them when it fails, mirroring a rollback.
// Nested calls join the outer transaction.
type fakeTxManager struct {
	taskRepo    *fakeTaskRepo
	historyRepo *fakeHistoryRepo
	depth       int
}

func (m *fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.depth > 0 {
		m.depth++
		defer func() { m.depth-- }()
		return fn(ctx)
	}

	var taskSnapshot map[int64]*entity.Task
	var updatesSnapshot []int64
	if m.taskRepo != nil {
		taskSnapshot = make(map[int64]*entity.Task, len(m.taskRepo.tasks))
		for id, task := range m.taskRepo.tasks {
			copied := *task
			taskSnapshot[id] = &copied
		}
		updatesSnapshot = append([]int64(nil), m.taskRepo.updates...)
	}
	var historySnapshot []*entity.TaskHistory
	if m.historyRepo != nil {
		historySnapshot = append([]*entity.TaskHistory(nil), m.historyRepo.entries...)
	}

	m.depth++
	err := fn(ctx)
	m.depth--

	if err != nil {
		if m.taskRepo != nil {
			m.taskRepo.tasks = taskSnapshot
			m.taskRepo.updates = updatesSnapshot
		}
		if m.historyRepo != nil {
			m.historyRepo.entries = historySnapshot
		}
	}
	return err
}
