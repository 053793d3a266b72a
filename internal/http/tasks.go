package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookshelf/internal/logger"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// TaskRunner is the task queue surface exposed to admins. Implemented by
// tasks.Client.
type TaskRunner interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
	EnqueueAuditCleanup(ctx context.Context, retentionDays int) (string, error)
}

// TasksController handles task queue management endpoints.
type TasksController struct {
	runner        TaskRunner
	retentionDays int
	log           *logger.Logger
}

// NewTasksController creates a new TasksController. retentionDays is the
// default for audit cleanups triggered without an explicit value.
func NewTasksController(runner TaskRunner, retentionDays int, log *logger.Logger) *TasksController {
	return &TasksController{runner: runner, retentionDays: retentionDays, log: logger.OrNop(log)}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Manual      bool   `json:"manual"`
}

// RunTaskRequest is the request body for running a task.
type RunTaskRequest struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

// ListTaskTypes handles GET /admin/tasks/types
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	types := []TaskTypeInfo{
		{
			Type:        tasks.CleanupAuditEventsTask{}.Config().Name,
			Description: "Delete audit events older than the retention period",
			Manual:      true,
		},
		{
			Type:        tasks.PurgeBookBlobsTask{}.Config().Name,
			Description: "Delete the stored files of a deleted book",
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"task_types": types,
	})
}

// GetTaskStatus handles GET /admin/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.runner.Status(ctx, taskID)
	if err != nil {
		tc.log.Error("failed to load task status", "task_id", taskID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load task status", Code: CodeInternal})
		return
	}
	if status == backlite.TaskStatusNotFound {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "task not found", Code: CodeNotFound})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}

// RunTask handles POST /admin/tasks/:type/run
func (tc *TasksController) RunTask(c *gin.Context) {
	taskType := c.Param("type")

	var req RunTaskRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	switch taskType {
	case tasks.CleanupAuditEventsTask{}.Config().Name:
		days := req.RetentionDays
		if days <= 0 {
			days = tc.retentionDays
		}
		id, err := tc.runner.EnqueueAuditCleanup(c.Request.Context(), days)
		if err != nil {
			tc.log.Error("failed to enqueue task", "type", taskType, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to enqueue task", Code: CodeInternal})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"task_id": id,
			"type":    taskType,
			"message": "task enqueued",
		})
	default:
		respondBadRequest(c, fmt.Sprintf("unknown task type: %s", taskType))
	}
}
