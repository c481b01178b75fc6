package entity

import "time"

type NotificationType string

const (
	TypeTaskAssigned   NotificationType = "task_assigned"
	TypeTaskUpdated    NotificationType = "task_updated"
	TypeCommentCreated NotificationType = "comment_created"
)

type NotificationStatus string

const (
	StatusUnread NotificationStatus = "unread"
	StatusRead   NotificationStatus = "read"
)

// Notification is a persisted per-user notification produced from a domain
// event. Metadata carries the originating event payload.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Status    NotificationStatus     `json:"status"`
	CreatedAt time.Time              `json:"createdAt"`
	UpdatedAt time.Time              `json:"updatedAt"`
}
