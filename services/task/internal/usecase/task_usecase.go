package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"time"

	"taskflow/pkg/logger"
	"taskflow/pkg/models"
	"taskflow/pkg/queue"
	"taskflow/services/task/internal/repo/persistent"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const statsCacheTTL = time.Minute

// Storage is the attachment blob store. Implemented by the S3 client.
type Storage interface {
	UploadFile(key string, file io.Reader, contentType string) (string, error)
	DeleteFile(key string) error
}

type CreateTaskInput struct {
	Title       string
	Description string
	Deadline    time.Time
	Priority    string
	AssigneeIDs []string
}

// UpdateTaskInput carries optional field updates. Nil means "leave unchanged".
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Deadline    *time.Time
	Priority    *string
	Status      *string
}

type TaskUseCase interface {
	CreateTask(userID string, input CreateTaskInput) (*models.Task, error)
	GetTask(taskID string) (*models.Task, error)
	ListTasks(filter persistent.TaskFilter, page, limit int) ([]models.Task, int64, error)
	UpdateTask(taskID, userID string, input UpdateTaskInput) (*models.Task, error)
	DeleteTask(taskID, userID string) error
	AssignUser(taskID, actorID, userID string) error
	UnassignUser(taskID, actorID, userID string) error
	GetHistory(taskID string) ([]models.TaskHistory, error)
	GetStats(createdBy string) (*persistent.TaskStats, error)
	UploadAttachment(taskID, userID string, file *multipart.FileHeader) (*models.TaskAttachment, error)
	ListAttachments(taskID string) ([]models.TaskAttachment, error)
	DeleteAttachment(taskID, attachmentID, userID string) error
}

type taskUseCase struct {
	taskRepo       persistent.TaskRepository
	attachmentRepo persistent.AttachmentRepository
	storage        Storage
	redisClient    *redis.Client
	publisher      queue.EventPublisher
	logger         *logger.Logger
}

func NewTaskUseCase(
	taskRepo persistent.TaskRepository,
	attachmentRepo persistent.AttachmentRepository,
	storage Storage,
	redisClient *redis.Client,
	publisher queue.EventPublisher,
	log *logger.Logger,
) TaskUseCase {
	return &taskUseCase{
		taskRepo:       taskRepo,
		attachmentRepo: attachmentRepo,
		storage:        storage,
		redisClient:    redisClient,
		publisher:      publisher,
		logger:         log,
	}
}

func (uc *taskUseCase) CreateTask(userID string, input CreateTaskInput) (*models.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	priority := models.TaskPriority(input.Priority)
	if input.Priority == "" {
		priority = models.PriorityMedium
	} else if !validPriority(priority) {
		return nil, fmt.Errorf("invalid priority: %s", input.Priority)
	}

	task := &models.Task{
		Title:       input.Title,
		Description: input.Description,
		Deadline:    input.Deadline,
		Priority:    priority,
		Status:      models.StatusTodo,
		CreatedBy:   userID,
	}

	assigneeIDs := dedup(input.AssigneeIDs)
	if err := uc.taskRepo.Create(task, assigneeIDs); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	uc.recordHistory(task.ID, userID, "created", nil, task)

	uc.publisher.Publish(queue.EventTaskCreated, task.ID, map[string]interface{}{
		"taskId":      task.ID,
		"title":       task.Title,
		"description": task.Description,
		"priority":    string(task.Priority),
		"status":      string(task.Status),
		"deadline":    task.Deadline.UTC().Format(time.RFC3339),
		"createdBy":   userID,
		"assignees":   assigneeIDs,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}, interestedInCreated(assigneeIDs, userID), userID)

	return task, nil
}

func (uc *taskUseCase) GetTask(taskID string) (*models.Task, error) {
	task, err := uc.taskRepo.GetByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task not found")
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (uc *taskUseCase) ListTasks(filter persistent.TaskFilter, page, limit int) ([]models.Task, int64, error) {
	tasks, total, err := uc.taskRepo.List(filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// UpdateTask applies the changed fields, records them in the task history and
// notifies everyone involved except the user who made the change.
func (uc *taskUseCase) UpdateTask(taskID, userID string, input UpdateTaskInput) (*models.Task, error) {
	task, err := uc.taskRepo.GetByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task not found")
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	previous := *task
	changes := make(map[string]interface{})

	if input.Title != nil && *input.Title != task.Title {
		task.Title = *input.Title
		changes["title"] = *input.Title
	}
	if input.Description != nil && *input.Description != task.Description {
		task.Description = *input.Description
		changes["description"] = *input.Description
	}
	if input.Deadline != nil && !input.Deadline.Equal(task.Deadline) {
		task.Deadline = *input.Deadline
		changes["deadline"] = input.Deadline.UTC().Format(time.RFC3339)
	}
	if input.Priority != nil && models.TaskPriority(*input.Priority) != task.Priority {
		if !validPriority(models.TaskPriority(*input.Priority)) {
			return nil, fmt.Errorf("invalid priority: %s", *input.Priority)
		}
		task.Priority = models.TaskPriority(*input.Priority)
		changes["priority"] = *input.Priority
	}
	if input.Status != nil && models.TaskStatus(*input.Status) != task.Status {
		if !validStatus(models.TaskStatus(*input.Status)) {
			return nil, fmt.Errorf("invalid status: %s", *input.Status)
		}
		task.Status = models.TaskStatus(*input.Status)
		changes["status"] = *input.Status
	}

	if len(changes) == 0 {
		return task, nil
	}

	if err := uc.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	uc.recordHistory(task.ID, userID, "updated", &previous, task)

	assigneeIDs := assigneeIDsOf(task)
	uc.publisher.Publish(queue.EventTaskUpdated, task.ID, map[string]interface{}{
		"taskId":    task.ID,
		"title":     task.Title,
		"changes":   changes,
		"updatedBy": userID,
		"assignees": assigneeIDs,
		"createdBy": task.CreatedBy,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, interestedInUpdated(assigneeIDs, task.CreatedBy, userID), userID)

	return task, nil
}

func (uc *taskUseCase) DeleteTask(taskID, userID string) error {
	task, err := uc.taskRepo.GetByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("task not found")
		}
		return fmt.Errorf("failed to get task: %w", err)
	}

	if task.CreatedBy != userID {
		return fmt.Errorf("only the task creator can delete a task")
	}

	if err := uc.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	uc.recordHistory(taskID, userID, "deleted", task, nil)
	return nil
}

func (uc *taskUseCase) AssignUser(taskID, actorID, userID string) error {
	task, err := uc.taskRepo.GetByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("task not found")
		}
		return fmt.Errorf("failed to get task: %w", err)
	}

	created, err := uc.taskRepo.AssignUser(taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to assign user: %w", err)
	}
	if !created {
		return fmt.Errorf("user is already assigned to this task")
	}

	uc.recordHistory(taskID, actorID, "assigned", nil, map[string]string{"userId": userID})

	uc.publisher.Publish(queue.EventTaskAssigned, taskID, map[string]interface{}{
		"taskId":     taskID,
		"title":      task.Title,
		"userId":     userID,
		"assignedAt": time.Now().UTC().Format(time.RFC3339),
	}, []string{userID}, actorID)

	return nil
}

func (uc *taskUseCase) UnassignUser(taskID, actorID, userID string) error {
	if err := uc.taskRepo.UnassignUser(taskID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("assignment not found")
		}
		return fmt.Errorf("failed to unassign user: %w", err)
	}

	uc.recordHistory(taskID, actorID, "unassigned", map[string]string{"userId": userID}, nil)
	return nil
}

func (uc *taskUseCase) GetHistory(taskID string) ([]models.TaskHistory, error) {
	history, err := uc.taskRepo.GetHistory(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task history: %w", err)
	}
	return history, nil
}

func (uc *taskUseCase) GetStats(createdBy string) (*persistent.TaskStats, error) {
	ctx := context.Background()
	cacheKey := fmt.Sprintf("tasks:stats:%s", createdBy)

	if uc.redisClient != nil {
		if cached, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var stats persistent.TaskStats
			if err := json.Unmarshal([]byte(cached), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	stats, err := uc.taskRepo.GetStats(createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to get task stats: %w", err)
	}

	if uc.redisClient != nil {
		if data, err := json.Marshal(stats); err == nil {
			uc.redisClient.Set(ctx, cacheKey, data, statsCacheTTL)
		}
	}

	return stats, nil
}

func (uc *taskUseCase) UploadAttachment(taskID, userID string, file *multipart.FileHeader) (*models.TaskAttachment, error) {
	if _, err := uc.GetTask(taskID); err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	fileKey := fmt.Sprintf("tasks/%s/%s%s", taskID, uuid.New().String(), filepath.Ext(file.Filename))
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileURL, err := uc.storage.UploadFile(fileKey, src, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to S3: %w", err)
	}

	attachment := &models.TaskAttachment{
		TaskID:     taskID,
		FileName:   file.Filename,
		FileKey:    fileKey,
		FileURL:    fileURL,
		UploadedBy: userID,
	}
	if err := uc.attachmentRepo.Create(attachment); err != nil {
		// The row is the source of truth; remove the orphaned object
		if delErr := uc.storage.DeleteFile(fileKey); delErr != nil {
			uc.logger.Error("Failed to remove orphaned attachment %s: %v", fileKey, delErr)
		}
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}

	return attachment, nil
}

func (uc *taskUseCase) ListAttachments(taskID string) ([]models.TaskAttachment, error) {
	attachments, err := uc.attachmentRepo.GetByTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}

func (uc *taskUseCase) DeleteAttachment(taskID, attachmentID, userID string) error {
	attachment, err := uc.attachmentRepo.GetByID(attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("attachment not found")
		}
		return fmt.Errorf("failed to get attachment: %w", err)
	}
	if attachment.TaskID != taskID {
		return fmt.Errorf("attachment not found")
	}
	if attachment.UploadedBy != userID {
		return fmt.Errorf("only the uploader can delete an attachment")
	}

	if err := uc.attachmentRepo.Delete(attachmentID); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	if err := uc.storage.DeleteFile(attachment.FileKey); err != nil {
		uc.logger.Error("Failed to delete attachment object %s: %v", attachment.FileKey, err)
	}

	return nil
}

// recordHistory is best-effort; an audit write failure never fails the
// operation it describes.
func (uc *taskUseCase) recordHistory(taskID, userID, action string, previous, current interface{}) {
	history := &models.TaskHistory{
		TaskID: taskID,
		UserID: userID,
		Action: action,
	}
	if previous != nil {
		if data, err := json.Marshal(previous); err == nil {
			history.PreviousValue = datatypes.JSON(data)
		}
	}
	if current != nil {
		if data, err := json.Marshal(current); err == nil {
			history.NewValue = datatypes.JSON(data)
		}
	}

	if err := uc.taskRepo.AddHistory(history); err != nil {
		uc.logger.Error("Failed to record task history for task %s: %v", taskID, err)
	}
}

func assigneeIDsOf(task *models.Task) []string {
	ids := make([]string, 0, len(task.Assignments))
	for _, assignment := range task.Assignments {
		ids = append(ids, assignment.UserID)
	}
	return ids
}

func validPriority(p models.TaskPriority) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

func validStatus(s models.TaskStatus) bool {
	switch s {
	case models.StatusTodo, models.StatusInProgress, models.StatusReview, models.StatusDone:
		return true
	}
	return false
}
