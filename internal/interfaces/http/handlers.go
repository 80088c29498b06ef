package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/task-tracker/internal/application/service"
	"github.com/garyjia/task-tracker/internal/domain/entity"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CreateTaskRequest is the create payload
type CreateTaskRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssignedTo     int64      `json:"assigned_to" binding:"required"`
	ParentTaskID   *int64     `json:"parent_task"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	Deadline       *time.Time `json:"deadline"`
	Tags           []string   `json:"tags"`
}

// UpdateTaskRequest is the update payload; omitted fields stay unchanged
type UpdateTaskRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status"`
	Priority       *string    `json:"priority"`
	AssignedTo     *int64     `json:"assigned_to"`
	ParentTaskID   *int64     `json:"parent_task"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	Deadline       *time.Time `json:"deadline"`
	Tags           []string   `json:"tags"`
}

// BulkUpdateRequest is the bulk transition payload
type BulkUpdateRequest struct {
	TaskIDs []int64 `json:"task_ids" binding:"required"`
	Status  string  `json:"status" binding:"required"`
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":  "healthy",
			"service": "task-tracker",
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// ListTasks handles GET /api/tasks
func (s *Server) ListTasks(c *gin.Context) {
	if s.requireActor(c) == nil {
		return
	}

	limit, offset := pagination(c)
	tasks, err := s.taskService.ListTasks(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// CreateTask handles POST /api/tasks
func (s *Server) CreateTask(c *gin.Context) {
	actor := s.requireActor(c)
	if actor == nil {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	task, err := s.taskService.CreateTask(c.Request.Context(), service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		ParentTaskID:   req.ParentTaskID,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		Deadline:       req.Deadline,
		Tags:           req.Tags,
	}, actor)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: task})
}

// GetTask handles GET /api/tasks/:id
func (s *Server) GetTask(c *gin.Context) {
	if s.requireActor(c) == nil {
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	task, err := s.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// UpdateTask handles PUT /api/tasks/:id
func (s *Server) UpdateTask(c *gin.Context) {
	actor := s.requireActor(c)
	if actor == nil {
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	current, err := s.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !s.canUpdateNow(actor, current, time.Now()) {
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "You can update tasks only between 9 AM and 6 PM in your timezone.",
		})
		return
	}

	task, err := s.taskService.UpdateTask(c.Request.Context(), id, service.UpdateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssignedTo:     req.AssignedTo,
		ParentTaskID:   req.ParentTaskID,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		Deadline:       req.Deadline,
		Tags:           req.Tags,
	}, actor)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// DeleteTask handles DELETE /api/tasks/:id
func (s *Server) DeleteTask(c *gin.Context) {
	actor := s.requireActor(c)
	if actor == nil {
		return
	}

	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.taskService.DeleteTask(c.Request.Context(), id, actor); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// BulkUpdate handles PUT /api/tasks/bulk-update
func (s *Server) BulkUpdate(c *gin.Context) {
	actor := s.requireActor(c)
	if actor == nil {
		return
	}
	if actor.Role == entity.RoleAuditor {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "Auditors cannot modify tasks."})
		return
	}

	var req BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	count, err := s.bulkService.BulkTransition(c.Request.Context(), req.TaskIDs, req.Status)
	if err != nil {
		// The bulk path reports unknown ids as a validation failure, not a 404.
		if errors.Is(err, service.ErrUnknownTask) {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"updated_count": count}})
}

// Analytics handles GET /api/tasks/analytics
func (s *Server) Analytics(c *gin.Context) {
	actor := s.requireActor(c)
	if actor == nil {
		return
	}

	if c.Query("format") == "xlsx" {
		data, err := s.analyticsService.ExportXLSX(c.Request.Context(), actor.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="task-analytics.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		return
	}

	report, err := s.analyticsService.Report(c.Request.Context(), actor.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListHistory handles GET /api/history
func (s *Server) ListHistory(c *gin.Context) {
	if s.requireActor(c) == nil {
		return
	}

	limit, offset := pagination(c)
	histories, err := s.historyRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: histories})
}

// ListNotifications handles GET /api/notifications
func (s *Server) ListNotifications(c *gin.Context) {
	actor := s.requireActor(c)
	if actor == nil {
		return
	}

	notifications, err := s.notificationRepo.GetByUserID(c.Request.Context(), actor.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: notifications})
}

// requireActor aborts with 401/403 unless an email-verified actor is present
func (s *Server) requireActor(c *gin.Context) *entity.User {
	actor := actorFrom(c)
	if actor == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "authentication required",
		})
		return nil
	}
	if !actor.EmailVerified {
		c.AbortWithStatusJSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "email verification required",
		})
		return nil
	}
	return actor
}

// respondError maps service errors to transport responses
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownTask):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrWriteForbidden):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrChildBlockingCompletion),
		errors.Is(err, service.ErrIncompleteChildren),
		errors.Is(err, service.ErrInvalidParentState),
		errors.Is(err, service.ErrSelfParentTask),
		errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	default:
		s.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid task id"})
		return 0, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
