package persistent

import (
	"taskflow/pkg/models"

	"gorm.io/gorm"
)

type AttachmentRepository interface {
	Create(attachment *models.TaskAttachment) error
	GetByTask(taskID string) ([]models.TaskAttachment, error)
	GetByID(id string) (*models.TaskAttachment, error)
	Delete(id string) error
}

type attachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(attachment *models.TaskAttachment) error {
	return r.db.Create(attachment).Error
}

func (r *attachmentRepository) GetByTask(taskID string) ([]models.TaskAttachment, error) {
	var attachments []models.TaskAttachment
	err := r.db.Where("task_id = ?", taskID).Order("created_at DESC").Find(&attachments).Error
	return attachments, err
}

func (r *attachmentRepository) GetByID(id string) (*models.TaskAttachment, error) {
	var attachment models.TaskAttachment
	if err := r.db.Where("id = ?", id).First(&attachment).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) Delete(id string) error {
	result := r.db.Delete(&models.TaskAttachment{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
