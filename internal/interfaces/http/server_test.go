package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/task-tracker/internal/application/service"
	"github.com/garyjia/task-tracker/internal/domain/entity"
	"github.com/garyjia/task-tracker/internal/ratelimit"
)

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

type fakeUserRepo struct {
	users map[int64]*entity.User
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.users[id], nil
}

type fakeAuditRepo struct {
	logs []*entity.APIAuditLog
}

func (r *fakeAuditRepo) Create(ctx context.Context, log *entity.APIAuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type fakeHistoryRepo struct{}

func (fakeHistoryRepo) Create(ctx context.Context, h *entity.TaskHistory) error { return nil }
func (fakeHistoryRepo) GetByTaskID(ctx context.Context, taskID int64) ([]*entity.TaskHistory, error) {
	return nil, nil
}
func (fakeHistoryRepo) List(ctx context.Context, limit, offset int) ([]*entity.TaskHistory, error) {
	return []*entity.TaskHistory{}, nil
}

type fakeNotificationRepo struct{}

func (fakeNotificationRepo) Notify(ctx context.Context, n *entity.Notification) error { return nil }
func (fakeNotificationRepo) GetByUserID(ctx context.Context, userID int64) ([]*entity.Notification, error) {
	return []*entity.Notification{}, nil
}

// fakeTaskService lets each test set only the method it exercises.
type fakeTaskService struct {
	createFunc func(ctx context.Context, input service.CreateTaskInput, actor *entity.User) (*entity.Task, error)
	getFunc    func(ctx context.Context, id int64) (*entity.Task, error)
	updateFunc func(ctx context.Context, id int64, input service.UpdateTaskInput, actor *entity.User) (*entity.Task, error)
	deleteFunc func(ctx context.Context, id int64, actor *entity.User) error
}

func (s *fakeTaskService) CreateTask(ctx context.Context, input service.CreateTaskInput, actor *entity.User) (*entity.Task, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, input, actor)
	}
	return &entity.Task{ID: 1, Title: input.Title, Status: entity.StatusPending, Priority: entity.PriorityMedium}, nil
}

func (s *fakeTaskService) GetTask(ctx context.Context, id int64) (*entity.Task, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, id)
	}
	return &entity.Task{ID: id, Status: entity.StatusPending, Priority: entity.PriorityMedium}, nil
}

func (s *fakeTaskService) ListTasks(ctx context.Context, limit, offset int) ([]*entity.Task, error) {
	return []*entity.Task{}, nil
}

func (s *fakeTaskService) UpdateTask(ctx context.Context, id int64, input service.UpdateTaskInput, actor *entity.User) (*entity.Task, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, id, input, actor)
	}
	return &entity.Task{ID: id}, nil
}

func (s *fakeTaskService) DeleteTask(ctx context.Context, id int64, actor *entity.User) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, id, actor)
	}
	return nil
}

type fakeBulkService struct {
	bulkFunc func(ctx context.Context, taskIDs []int64, newStatus string) (int, error)
}

func (s *fakeBulkService) BulkTransition(ctx context.Context, taskIDs []int64, newStatus string) (int, error) {
	if s.bulkFunc != nil {
		return s.bulkFunc(ctx, taskIDs, newStatus)
	}
	return len(taskIDs), nil
}

type fakeAnalyticsService struct{}

func (fakeAnalyticsService) Report(ctx context.Context, userID int64) (*service.AnalyticsReport, error) {
	return &service.AnalyticsReport{}, nil
}

func (fakeAnalyticsService) ExportXLSX(ctx context.Context, userID int64) ([]byte, error) {
	return []byte("PK"), nil
}

type serverFixture struct {
	server      *Server
	taskService *fakeTaskService
	bulkService *fakeBulkService
	auditRepo   *fakeAuditRepo
	limiter     *ratelimit.Limiter
}

func newServerFixture(t *testing.T, users ...*entity.User) *serverFixture {
	t.Helper()

	userRepo := &fakeUserRepo{users: make(map[int64]*entity.User)}
	for _, user := range users {
		userRepo.users[user.ID] = user
	}

	taskService := &fakeTaskService{}
	bulkService := &fakeBulkService{}
	auditRepo := &fakeAuditRepo{}
	limiter := ratelimit.New(ratelimit.DefaultPolicy(), time.Hour, zap.NewNop())

	server := NewServer(
		ServerConfig{WorkdayStartHour: 0, WorkdayEndHour: 24},
		taskService,
		bulkService,
		fakeAnalyticsService{},
		fakeHistoryRepo{},
		fakeNotificationRepo{},
		userRepo,
		auditRepo,
		limiter,
		testLogger{},
	)

	return &serverFixture{
		server:      server,
		taskService: taskService,
		bulkService: bulkService,
		auditRepo:   auditRepo,
		limiter:     limiter,
	}
}

func (f *serverFixture) do(method, path, userID, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

var verifiedManager = &entity.User{ID: 1, Role: entity.RoleManager, EmailVerified: true, Timezone: "UTC"}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRequestsWithoutIdentityAreUnauthorized(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(http.MethodGet, "/api/tasks", "", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnknownUserIDIsUnauthorized(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(http.MethodGet, "/api/tasks", "99", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnverifiedEmailIsForbidden(t *testing.T) {
	f := newServerFixture(t, &entity.User{ID: 5, Role: entity.RoleDeveloper, EmailVerified: false})

	w := f.do(http.MethodGet, "/api/tasks", "5", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuditorWriteIsHardBlocked(t *testing.T) {
	f := newServerFixture(t, &entity.User{ID: 3, Role: entity.RoleAuditor, EmailVerified: true})

	w := f.do(http.MethodPost, "/api/tasks", "3", `{"title":"x","assigned_to":3}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "WRITE operations are not allowed.")
}

func TestWriteRateLimitDenialCarriesWaitHeader(t *testing.T) {
	f := newServerFixture(t, &entity.User{ID: 2, Role: entity.RoleDeveloper, EmailVerified: true, Timezone: "UTC"})

	body := `{"title":"x","assigned_to":2}`
	for i := 0; i < 20; i++ {
		w := f.do(http.MethodPost, "/api/tasks", "2", body)
		require.Equal(t, http.StatusCreated, w.Code, "write %d should pass", i+1)
	}

	w := f.do(http.MethodPost, "/api/tasks", "2", body)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Write-Available-In"))
	assert.Contains(t, w.Body.String(), "wait_seconds")
}

func TestReadsSurviveWriteExhaustion(t *testing.T) {
	f := newServerFixture(t, &entity.User{ID: 2, Role: entity.RoleDeveloper, EmailVerified: true, Timezone: "UTC"})

	body := `{"title":"x","assigned_to":2}`
	for i := 0; i < 21; i++ {
		f.do(http.MethodPost, "/api/tasks", "2", body)
	}

	w := f.do(http.MethodGet, "/api/tasks", "2", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLogRecordsMaskedRequestBody(t *testing.T) {
	f := newServerFixture(t, verifiedManager)

	w := f.do(http.MethodPost, "/api/tasks", "1", `{"title":"deploy","assigned_to":2,"token":"abc123"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	require.Len(t, f.auditRepo.logs, 1)
	log := f.auditRepo.logs[0]
	assert.Equal(t, "/api/tasks", log.Endpoint)
	assert.Equal(t, http.MethodPost, log.Method)
	assert.Equal(t, http.StatusCreated, log.StatusCode)
	require.NotNil(t, log.UserID)
	assert.Equal(t, int64(1), *log.UserID)
	assert.Contains(t, log.RequestBody, `"token":"********"`)
	assert.NotContains(t, log.RequestBody, "abc123")
	assert.Empty(t, log.ResponseBody, "response bodies are captured only for errors")
}

func TestAuditLogCapturesErrorResponses(t *testing.T) {
	f := newServerFixture(t, verifiedManager)
	f.taskService.getFunc = func(ctx context.Context, id int64) (*entity.Task, error) {
		return nil, service.ErrUnknownTask
	}

	w := f.do(http.MethodGet, "/api/tasks/42", "1", "")

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Len(t, f.auditRepo.logs, 1)
	assert.NotEmpty(t, f.auditRepo.logs[0].ResponseBody)
}

func TestAnalyticsPathSkipsAuditLog(t *testing.T) {
	f := newServerFixture(t, verifiedManager)

	w := f.do(http.MethodGet, "/api/tasks/analytics", "1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.auditRepo.logs)
}

func TestBulkUpdate(t *testing.T) {
	f := newServerFixture(t, verifiedManager)

	w := f.do(http.MethodPut, "/api/tasks/bulk-update", "1", `{"task_ids":[1,2,3],"status":"in_progress"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			UpdatedCount int `json:"updated_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Data.UpdatedCount)
}

func TestBulkUpdateUnknownTaskIsBadRequest(t *testing.T) {
	f := newServerFixture(t, verifiedManager)
	f.bulkService.bulkFunc = func(ctx context.Context, taskIDs []int64, newStatus string) (int, error) {
		return 0, service.ErrUnknownTask
	}

	w := f.do(http.MethodPut, "/api/tasks/bulk-update", "1", `{"task_ids":[99],"status":"completed"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "unknown task", err: service.ErrUnknownTask, want: http.StatusNotFound},
		{name: "write forbidden", err: service.ErrWriteForbidden, want: http.StatusForbidden},
		{name: "child blocking completion", err: service.ErrChildBlockingCompletion, want: http.StatusBadRequest},
		{name: "self parent", err: service.ErrSelfParentTask, want: http.StatusBadRequest},
		{name: "invalid status", err: service.ErrInvalidStatus, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t, verifiedManager)
			f.taskService.updateFunc = func(ctx context.Context, id int64, input service.UpdateTaskInput, actor *entity.User) (*entity.Task, error) {
				return nil, tt.err
			}

			w := f.do(http.MethodPut, "/api/tasks/1", "1", `{"title":"x"}`)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAnalyticsXLSXExport(t *testing.T) {
	f := newServerFixture(t, verifiedManager)

	w := f.do(http.MethodGet, "/api/tasks/analytics?format=xlsx", "1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "task-analytics.xlsx")
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))
}

func TestCORSPreflight(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(http.MethodOptions, "/api/tasks", "", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
