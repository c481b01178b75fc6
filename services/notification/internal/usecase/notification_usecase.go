package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskflow/pkg/logger"
	"taskflow/pkg/queue"
	"taskflow/services/notification/internal/entity"
	"taskflow/services/notification/internal/repo/persistent"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const unreadCountTTL = 10 * time.Minute

// Deliverer pushes a freshly persisted notification to the user's live
// connections. Implemented by the WebSocket room registry.
type Deliverer interface {
	DeliverTo(userID string, notification *entity.Notification)
}

type NotificationUseCase interface {
	HandleEvent(event *queue.TaskEvent) error
	GetNotifications(userID string, page, limit int, status string) ([]entity.Notification, int64, error)
	MarkAsRead(userID, notificationID string) (*entity.Notification, error)
	MarkAllAsRead(userID string) error
	UnreadCount(userID string) (int64, error)
}

type notificationUseCase struct {
	notificationRepo persistent.NotificationRepository
	deliverer        Deliverer
	redisClient      *redis.Client
	logger           *logger.Logger
}

func NewNotificationUseCase(notificationRepo persistent.NotificationRepository, deliverer Deliverer, redisClient *redis.Client, log *logger.Logger) NotificationUseCase {
	return &notificationUseCase{
		notificationRepo: notificationRepo,
		deliverer:        deliverer,
		redisClient:      redisClient,
		logger:           log,
	}
}

// HandleEvent fans one domain event out into one persisted notification per
// interested user, then pushes each created notification to that user's live
// connections. A persistence failure for one user never aborts the rest of
// the batch.
func (uc *notificationUseCase) HandleEvent(event *queue.TaskEvent) error {
	uc.logger.Info("[CONSUMER] Processing event kind=%s, id=%s, interested=%d", event.Kind, event.ID, len(event.InterestedUserIDs))

	for _, userID := range event.InterestedUserIDs {
		notification := uc.buildNotification(event, userID)
		if notification == nil {
			uc.logger.Error("[CONSUMER] Unknown event kind: %s, id=%s", event.Kind, event.ID)
			return fmt.Errorf("unknown event kind: %s", event.Kind)
		}

		created, err := uc.notificationRepo.Create(notification, event.ID)
		if err != nil {
			uc.logger.Error("[CONSUMER] Failed to persist notification for user %s, event %s: %v", userID, event.ID, err)
			continue
		}
		if !created {
			// Redelivered event; the notification row already exists and was
			// already pushed once.
			uc.logger.Info("[CONSUMER] Skipping duplicate event %s for user %s", event.ID, userID)
			continue
		}

		uc.invalidateUnreadCount(userID)
		uc.deliverer.DeliverTo(userID, notification)
	}

	return nil
}

func (uc *notificationUseCase) buildNotification(event *queue.TaskEvent, userID string) *entity.Notification {
	var notificationType entity.NotificationType
	var title, message string

	switch event.Kind {
	case queue.EventTaskCreated:
		taskTitle, _ := event.Payload["title"].(string)
		if containsUser(event.Payload["assignees"], userID) {
			notificationType = entity.TypeTaskAssigned
			title = "Task Assigned"
			message = fmt.Sprintf("You were assigned to task %q", taskTitle)
		} else {
			notificationType = entity.TypeTaskUpdated
			title = "Task Created"
			message = fmt.Sprintf("Task %q was created successfully", taskTitle)
		}
	case queue.EventTaskUpdated:
		notificationType = entity.TypeTaskUpdated
		title = "Task Updated"
		message = fmt.Sprintf("Task was updated. Changes: %s", changedFieldNames(event.Payload["changes"]))
	case queue.EventCommentCreated:
		content, _ := event.Payload["content"].(string)
		notificationType = entity.TypeCommentCreated
		title = "New Comment"
		message = fmt.Sprintf("New comment: %q", truncateContent(content, 50))
	case queue.EventTaskAssigned:
		notificationType = entity.TypeTaskAssigned
		title = "Task Assigned"
		message = "You have been assigned to a new task."
	default:
		return nil
	}

	return &entity.Notification{
		UserID:   userID,
		Type:     notificationType,
		Title:    title,
		Message:  message,
		Metadata: event.Payload,
		Status:   entity.StatusUnread,
	}
}

func (uc *notificationUseCase) GetNotifications(userID string, page, limit int, status string) ([]entity.Notification, int64, error) {
	notifications, total, err := uc.notificationRepo.GetByUser(userID, page, limit, status)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get notifications: %w", err)
	}
	return notifications, total, nil
}

func (uc *notificationUseCase) MarkAsRead(userID, notificationID string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.MarkAsRead(userID, notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification not found")
		}
		return nil, fmt.Errorf("failed to mark notification as read: %w", err)
	}

	uc.invalidateUnreadCount(userID)
	return notification, nil
}

func (uc *notificationUseCase) MarkAllAsRead(userID string) error {
	updated, err := uc.notificationRepo.MarkAllAsRead(userID)
	if err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}

	uc.invalidateUnreadCount(userID)
	uc.logger.Info("Marked %d notifications as read for user %s", updated, userID)
	return nil
}

func (uc *notificationUseCase) UnreadCount(userID string) (int64, error) {
	ctx := context.Background()
	cacheKey := unreadCountKey(userID)

	if uc.redisClient != nil {
		if cached, err := uc.redisClient.Get(ctx, cacheKey).Int64(); err == nil {
			return cached, nil
		}
	}

	count, err := uc.notificationRepo.CountUnread(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	if uc.redisClient != nil {
		uc.redisClient.Set(ctx, cacheKey, count, unreadCountTTL)
	}

	return count, nil
}

func (uc *notificationUseCase) invalidateUnreadCount(userID string) {
	if uc.redisClient == nil {
		return
	}
	if err := uc.redisClient.Del(context.Background(), unreadCountKey(userID)).Err(); err != nil {
		uc.logger.Warn("Failed to invalidate unread count for user %s: %v", userID, err)
	}
}

func unreadCountKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

func containsUser(assignees interface{}, userID string) bool {
	list, ok := assignees.([]interface{})
	if !ok {
		// Locally produced events carry a []string payload; events decoded
		// from JSON carry []interface{}.
		strs, ok := assignees.([]string)
		if !ok {
			return false
		}
		for _, s := range strs {
			if s == userID {
				return true
			}
		}
		return false
	}
	for _, item := range list {
		if s, ok := item.(string); ok && s == userID {
			return true
		}
	}
	return false
}

func changedFieldNames(changes interface{}) string {
	m, ok := changes.(map[string]interface{})
	if !ok {
		return ""
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// truncateContent cuts on rune boundaries so multi-byte content never yields
// an invalid UTF-8 preview.
func truncateContent(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
