package usecase

import (
	"errors"
	"fmt"
	"time"

	"taskflow/pkg/logger"
	"taskflow/pkg/models"
	"taskflow/pkg/queue"
	"taskflow/services/task/internal/repo/persistent"

	"gorm.io/gorm"
)

type CommentUseCase interface {
	CreateComment(taskID, authorID, content string) (*models.Comment, error)
	GetComments(taskID string, page, limit int) ([]models.Comment, int64, error)
	DeleteComment(taskID, commentID, userID string) error
}

type commentUseCase struct {
	commentRepo persistent.CommentRepository
	taskRepo    persistent.TaskRepository
	publisher   queue.EventPublisher
	logger      *logger.Logger
}

func NewCommentUseCase(
	commentRepo persistent.CommentRepository,
	taskRepo persistent.TaskRepository,
	publisher queue.EventPublisher,
	log *logger.Logger,
) CommentUseCase {
	return &commentUseCase{
		commentRepo: commentRepo,
		taskRepo:    taskRepo,
		publisher:   publisher,
		logger:      log,
	}
}

func (uc *commentUseCase) CreateComment(taskID, authorID, content string) (*models.Comment, error) {
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	task, err := uc.taskRepo.GetByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task not found")
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	comment := &models.Comment{
		TaskID:   taskID,
		AuthorID: authorID,
		Content:  content,
	}
	if err := uc.commentRepo.Create(comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	assigneeIDs := assigneeIDsOf(task)
	uc.publisher.Publish(queue.EventCommentCreated, comment.ID, map[string]interface{}{
		"taskId":    taskID,
		"commentId": comment.ID,
		"content":   content,
		"authorId":  authorID,
		"assignees": assigneeIDs,
		"createdBy": task.CreatedBy,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, interestedInComment(assigneeIDs, task.CreatedBy, authorID), authorID)

	return comment, nil
}

func (uc *commentUseCase) GetComments(taskID string, page, limit int) ([]models.Comment, int64, error) {
	comments, total, err := uc.commentRepo.GetByTask(taskID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get comments: %w", err)
	}
	return comments, total, nil
}

func (uc *commentUseCase) DeleteComment(taskID, commentID, userID string) error {
	comment, err := uc.commentRepo.GetByID(commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("comment not found")
		}
		return fmt.Errorf("failed to get comment: %w", err)
	}
	if comment.TaskID != taskID {
		return fmt.Errorf("comment not found")
	}
	if comment.AuthorID != userID {
		return fmt.Errorf("only the comment author can delete a comment")
	}

	if err := uc.commentRepo.Delete(commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	return nil
}
