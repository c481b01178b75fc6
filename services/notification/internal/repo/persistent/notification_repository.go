package persistent

import (
	"errors"
	"fmt"

	"taskflow/services/notification/internal/entity"
	"taskflow/services/notification/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	// Create persists one notification. It returns false when a notification
	// for the same (event, user) pair already exists, which happens on
	// at-least-once queue redelivery.
	Create(notification *entity.Notification, eventID string) (bool, error)
	GetByUser(userID string, page, limit int, status string) ([]entity.Notification, int64, error)
	MarkAsRead(userID, notificationID string) (*entity.Notification, error)
	MarkAllAsRead(userID string) (int64, error)
	CountUnread(userID string) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(notification *entity.Notification, eventID string) (bool, error) {
	notificationModel, err := ToNotificationModel(notification, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to marshal notification metadata: %w", err)
	}

	if err := r.db.Create(notificationModel).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}

	created := ToNotificationEntity(notificationModel)
	*notification = *created
	return true, nil
}

func (r *notificationRepository) GetByUser(userID string, page, limit int, status string) ([]entity.Notification, int64, error) {
	query := r.db.Model(&model.NotificationModel{}).Where("user_id = ?", userID)
	if status == string(entity.StatusUnread) || status == string(entity.StatusRead) {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notificationModels []model.NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&notificationModels).Error
	if err != nil {
		return nil, 0, err
	}

	return ToNotificationEntities(notificationModels), total, nil
}

func (r *notificationRepository) MarkAsRead(userID, notificationID string) (*entity.Notification, error) {
	var notificationModel model.NotificationModel
	err := r.db.Where("id = ? AND user_id = ?", notificationID, userID).First(&notificationModel).Error
	if err != nil {
		return nil, err
	}

	notificationModel.Status = string(entity.StatusRead)
	if err := r.db.Save(&notificationModel).Error; err != nil {
		return nil, err
	}

	return ToNotificationEntity(&notificationModel), nil
}

func (r *notificationRepository) MarkAllAsRead(userID string) (int64, error) {
	result := r.db.Model(&model.NotificationModel{}).
		Where("user_id = ? AND status = ?", userID, string(entity.StatusUnread)).
		Update("status", string(entity.StatusRead))
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) CountUnread(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.NotificationModel{}).
		Where("user_id = ? AND status = ?", userID, string(entity.StatusUnread)).
		Count(&count).Error
	return count, err
}
