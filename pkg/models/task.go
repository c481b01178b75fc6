package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

type Task struct {
	ID          string           `gorm:"type:uuid;primary_key" json:"id"`
	Title       string           `gorm:"type:varchar(255);not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Deadline    time.Time        `json:"deadline"`
	Priority    TaskPriority     `gorm:"type:varchar(20);default:'medium'" json:"priority"`
	Status      TaskStatus       `gorm:"type:varchar(20);default:'todo'" json:"status"`
	CreatedBy   string           `gorm:"type:uuid;not null;index" json:"createdBy"`
	Assignments []TaskAssignment `gorm:"foreignKey:TaskID" json:"assignments,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

type TaskAssignment struct {
	ID         string    `gorm:"type:uuid;primary_key" json:"id"`
	TaskID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_task_user" json:"taskId"`
	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_task_user" json:"userId"`
	AssignedAt time.Time `json:"assignedAt"`
}

func (a *TaskAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	return nil
}

type TaskHistory struct {
	ID            string         `gorm:"type:uuid;primary_key" json:"id"`
	TaskID        string         `gorm:"type:uuid;not null;index" json:"taskId"`
	UserID        string         `gorm:"type:uuid;not null" json:"userId"`
	Action        string         `gorm:"type:varchar(20);not null" json:"action"`
	PreviousValue datatypes.JSON `json:"previousValue"`
	NewValue      datatypes.JSON `json:"newValue"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (h *TaskHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}

type TaskAttachment struct {
	ID        string    `gorm:"type:uuid;primary_key" json:"id"`
	TaskID    string    `gorm:"type:uuid;not null;index" json:"taskId"`
	FileName  string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FileKey   string    `gorm:"type:varchar(500);not null" json:"-"`
	FileURL   string    `gorm:"type:varchar(500);not null" json:"fileUrl"`
	UploadedBy string   `gorm:"type:uuid;not null" json:"uploadedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *TaskAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
