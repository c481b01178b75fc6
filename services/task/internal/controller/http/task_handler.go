package http

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskflow/pkg/logger"
	"taskflow/services/task/internal/repo/persistent"
	"taskflow/services/task/internal/usecase"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskUseCase    usecase.TaskUseCase
	commentUseCase usecase.CommentUseCase
	logger         *logger.Logger
}

func NewTaskHandler(taskUseCase usecase.TaskUseCase, commentUseCase usecase.CommentUseCase, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskUseCase:    taskUseCase,
		commentUseCase: commentUseCase,
		logger:         logger,
	}
}

type createTaskRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Priority    string    `json:"priority"`
	AssigneeIDs []string  `json:"assigneeIds"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Deadline    *time.Time `json:"deadline"`
	Priority    *string    `json:"priority"`
	Status      *string    `json:"status"`
}

type assignRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateTask godoc
// @Summary      Create a task
// @Description  Create a task, optionally assigning users to it
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body createTaskRequest true "Task data"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID := c.GetString("user_id")

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUseCase.CreateTask(userID, usecase.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Priority:    req.Priority,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		if strings.Contains(err.Error(), "invalid") || strings.Contains(err.Error(), "required") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			h.logger.Error("Failed to create task: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": task})
}

// GetTask godoc
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskUseCase.GetTask(c.Param("id"))
	if err != nil {
		if err.Error() == "task not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			h.logger.Error("Failed to get task: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get task"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": task})
}

// ListTasks godoc
// @Summary      List tasks
// @Description  List tasks with optional status, priority and assignee filters
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "Page number (default 1)"
// @Param        limit query int false "Page size (default 20, max 100)"
// @Param        status query string false "Filter by status"
// @Param        priority query string false "Filter by priority"
// @Param        assigneeId query string false "Filter by assignee"
// @Param        createdBy query string false "Filter by creator"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	page, limit := pagination(c)

	filter := persistent.TaskFilter{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		AssigneeID: c.Query("assigneeId"),
		CreatedBy:  c.Query("createdBy"),
	}

	tasks, total, err := h.taskUseCase.ListTasks(filter, page, limit)
	if err != nil {
		h.logger.Error("Failed to list tasks: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": tasks,
		"meta": gin.H{
			"total":      total,
			"page":       page,
			"limit":      limit,
			"totalPages": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// UpdateTask godoc
// @Summary      Update a task
// @Description  Update task fields; only provided fields are changed
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        request body updateTaskRequest true "Fields to update"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID := c.GetString("user_id")

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUseCase.UpdateTask(c.Param("id"), userID, usecase.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
		Priority:    req.Priority,
		Status:      req.Status,
	})
	if err != nil {
		switch {
		case err.Error() == "task not found":
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case strings.Contains(err.Error(), "invalid"):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to update task: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": task})
}

// DeleteTask godoc
// @Summary      Delete a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.taskUseCase.DeleteTask(c.Param("id"), userID); err != nil {
		switch {
		case err.Error() == "task not found":
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case strings.Contains(err.Error(), "only the task creator"):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to delete task: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// AssignUser godoc
// @Summary      Assign a user to a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        request body assignRequest true "User to assign"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/assignments [post]
func (h *TaskHandler) AssignUser(c *gin.Context) {
	actorID := c.GetString("user_id")

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.taskUseCase.AssignUser(c.Param("id"), actorID, req.UserID); err != nil {
		switch {
		case err.Error() == "task not found":
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case strings.Contains(err.Error(), "already assigned"):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to assign user: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign user"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User assigned"})
}

// UnassignUser godoc
// @Summary      Remove a user from a task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        user_id path string true "User ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/assignments/{user_id} [delete]
func (h *TaskHandler) UnassignUser(c *gin.Context) {
	actorID := c.GetString("user_id")

	if err := h.taskUseCase.UnassignUser(c.Param("id"), actorID, c.Param("user_id")); err != nil {
		if err.Error() == "assignment not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			h.logger.Error("Failed to unassign user: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unassign user"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User unassigned"})
}

// GetHistory godoc
// @Summary      Get task history
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /tasks/{id}/history [get]
func (h *TaskHandler) GetHistory(c *gin.Context) {
	history, err := h.taskUseCase.GetHistory(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to get task history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get task history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

// GetStats godoc
// @Summary      Get task statistics
// @Description  Aggregate task counts by status and priority, plus overdue count
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        createdBy query string false "Limit stats to one creator's tasks"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /tasks/stats [get]
func (h *TaskHandler) GetStats(c *gin.Context) {
	stats, err := h.taskUseCase.GetStats(c.Query("createdBy"))
	if err != nil {
		h.logger.Error("Failed to get task stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get task stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// CreateComment godoc
// @Summary      Comment on a task
// @Tags         comments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        request body commentRequest true "Comment content"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/comments [post]
func (h *TaskHandler) CreateComment(c *gin.Context) {
	userID := c.GetString("user_id")

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.commentUseCase.CreateComment(c.Param("id"), userID, req.Content)
	if err != nil {
		if err.Error() == "task not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			h.logger.Error("Failed to create comment: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": comment})
}

// GetComments godoc
// @Summary      List comments on a task
// @Tags         comments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        page query int false "Page number (default 1)"
// @Param        limit query int false "Page size (default 20, max 100)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /tasks/{id}/comments [get]
func (h *TaskHandler) GetComments(c *gin.Context) {
	page, limit := pagination(c)

	comments, total, err := h.commentUseCase.GetComments(c.Param("id"), page, limit)
	if err != nil {
		h.logger.Error("Failed to get comments: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": comments,
		"meta": gin.H{
			"total":      total,
			"page":       page,
			"limit":      limit,
			"totalPages": int(math.Ceil(float64(total) / float64(limit))),
		},
	})
}

// DeleteComment godoc
// @Summary      Delete a comment
// @Tags         comments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        comment_id path string true "Comment ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/comments/{comment_id} [delete]
func (h *TaskHandler) DeleteComment(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.commentUseCase.DeleteComment(c.Param("id"), c.Param("comment_id"), userID); err != nil {
		switch {
		case err.Error() == "comment not found":
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case strings.Contains(err.Error(), "only the comment author"):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to delete comment: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}

// UploadAttachment godoc
// @Summary      Attach a file to a task
// @Tags         attachments
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        file formData file true "File to attach"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/attachments [post]
func (h *TaskHandler) UploadAttachment(c *gin.Context) {
	userID := c.GetString("user_id")

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	attachment, err := h.taskUseCase.UploadAttachment(c.Param("id"), userID, file)
	if err != nil {
		if err.Error() == "task not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			h.logger.Error("Failed to upload attachment: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload attachment"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": attachment})
}

// ListAttachments godoc
// @Summary      List task attachments
// @Tags         attachments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /tasks/{id}/attachments [get]
func (h *TaskHandler) ListAttachments(c *gin.Context) {
	attachments, err := h.taskUseCase.ListAttachments(c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to list attachments: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attachments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": attachments})
}

// DeleteAttachment godoc
// @Summary      Delete a task attachment
// @Tags         attachments
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Task ID"
// @Param        attachment_id path string true "Attachment ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/attachments/{attachment_id} [delete]
func (h *TaskHandler) DeleteAttachment(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.taskUseCase.DeleteAttachment(c.Param("id"), c.Param("attachment_id"), userID); err != nil {
		switch {
		case err.Error() == "attachment not found":
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case strings.Contains(err.Error(), "only the uploader"):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to delete attachment: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete attachment"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted"})
}

func pagination(c *gin.Context) (int, int) {
	page := 1
	limit := 20
	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	return page, limit
}
