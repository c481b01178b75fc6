package persistent

import (
	"encoding/json"

	"taskflow/services/notification/internal/entity"
	"taskflow/services/notification/internal/model"
)

func ToNotificationEntity(m *model.NotificationModel) *entity.Notification {
	if m == nil {
		return nil
	}

	var metadata map[string]interface{}
	if len(m.Metadata) > 0 {
		_ = json.Unmarshal(m.Metadata, &metadata)
	}

	return &entity.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      entity.NotificationType(m.Type),
		Title:     m.Title,
		Message:   m.Message,
		Metadata:  metadata,
		Status:    entity.NotificationStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ToNotificationEntities(ms []model.NotificationModel) []entity.Notification {
	notifications := make([]entity.Notification, len(ms))
	for i := range ms {
		notifications[i] = *ToNotificationEntity(&ms[i])
	}
	return notifications
}

func ToNotificationModel(n *entity.Notification, eventID string) (*model.NotificationModel, error) {
	var metadata []byte
	if n.Metadata != nil {
		var err error
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return nil, err
		}
	}

	return &model.NotificationModel{
		ID:       n.ID,
		UserID:   n.UserID,
		EventID:  eventID,
		Type:     string(n.Type),
		Title:    n.Title,
		Message:  n.Message,
		Metadata: metadata,
		Status:   string(n.Status),
	}, nil
}
