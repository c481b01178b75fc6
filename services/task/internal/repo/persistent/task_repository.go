package persistent

import (
	"errors"
	"time"

	"taskflow/pkg/models"

	"gorm.io/gorm"
)

// TaskFilter narrows List results. Zero values mean no filtering.
type TaskFilter struct {
	Status     string
	Priority   string
	AssigneeID string
	CreatedBy  string
}

// TaskStats aggregates task counts for the stats endpoint.
type TaskStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByPriority map[string]int64 `json:"byPriority"`
	Overdue    int64            `json:"overdue"`
}

type TaskRepository interface {
	Create(task *models.Task, assigneeIDs []string) error
	GetByID(id string) (*models.Task, error)
	List(filter TaskFilter, page, limit int) ([]models.Task, int64, error)
	Update(task *models.Task) error
	Delete(id string) error
	AssignUser(taskID, userID string) (bool, error)
	UnassignUser(taskID, userID string) error
	GetAssigneeIDs(taskID string) ([]string, error)
	AddHistory(history *models.TaskHistory) error
	GetHistory(taskID string) ([]models.TaskHistory, error)
	GetStats(createdBy string) (*TaskStats, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(task *models.Task, assigneeIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return err
		}

		for _, userID := range assigneeIDs {
			assignment := models.TaskAssignment{TaskID: task.ID, UserID: userID}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
			task.Assignments = append(task.Assignments, assignment)
		}

		return nil
	})
}

func (r *taskRepository) GetByID(id string) (*models.Task, error) {
	var task models.Task
	if err := r.db.Preload("Assignments").Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(filter TaskFilter, page, limit int) ([]models.Task, int64, error) {
	query := r.db.Model(&models.Task{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.AssigneeID != "" {
		query = query.Where(
			"id IN (?)",
			r.db.Model(&models.TaskAssignment{}).Select("task_id").Where("user_id = ?", filter.AssigneeID),
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []models.Task
	err := query.
		Preload("Assignments").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *taskRepository) Update(task *models.Task) error {
	return r.db.Save(task).Error
}

func (r *taskRepository) Delete(id string) error {
	result := r.db.Delete(&models.Task{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AssignUser adds a user to a task. It returns false when the assignment
// already exists.
func (r *taskRepository) AssignUser(taskID, userID string) (bool, error) {
	assignment := models.TaskAssignment{TaskID: taskID, UserID: userID}
	if err := r.db.Create(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *taskRepository) UnassignUser(taskID, userID string) error {
	result := r.db.Where("task_id = ? AND user_id = ?", taskID, userID).Delete(&models.TaskAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *taskRepository) GetAssigneeIDs(taskID string) ([]string, error) {
	var userIDs []string
	err := r.db.Model(&models.TaskAssignment{}).
		Where("task_id = ?", taskID).
		Order("assigned_at ASC").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

func (r *taskRepository) AddHistory(history *models.TaskHistory) error {
	return r.db.Create(history).Error
}

func (r *taskRepository) GetHistory(taskID string) ([]models.TaskHistory, error) {
	var history []models.TaskHistory
	err := r.db.Where("task_id = ?", taskID).Order("created_at DESC").Find(&history).Error
	return history, err
}

func (r *taskRepository) GetStats(createdBy string) (*TaskStats, error) {
	stats := &TaskStats{
		ByStatus:   make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	base := r.db.Model(&models.Task{})
	if createdBy != "" {
		base = base.Where("created_by = ?", createdBy)
	}

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var statusBuckets []bucket
	err := base.Session(&gorm.Session{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&statusBuckets).Error
	if err != nil {
		return nil, err
	}
	for _, b := range statusBuckets {
		stats.ByStatus[b.Key] = b.Count
	}

	var priorityBuckets []bucket
	err = base.Session(&gorm.Session{}).
		Select("priority AS key, COUNT(*) AS count").
		Group("priority").
		Scan(&priorityBuckets).Error
	if err != nil {
		return nil, err
	}
	for _, b := range priorityBuckets {
		stats.ByPriority[b.Key] = b.Count
	}

	err = base.Session(&gorm.Session{}).
		Where("deadline < ? AND status != ?", time.Now().UTC(), string(models.StatusDone)).
		Count(&stats.Overdue).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
