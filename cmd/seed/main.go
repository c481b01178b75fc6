package main

import (
	"fmt"
	"time"

	"taskflow/pkg/config"
	"taskflow/pkg/database"
	"taskflow/pkg/logger"
	"taskflow/pkg/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	if err := seedDatabase(db, log); err != nil {
		log.Error("Failed to seed database: %v", err)
		panic(err)
	}

	log.Info("Database seeded successfully!")
}

func seedDatabase(db *gorm.DB, log *logger.Logger) error {
	testUsers := []struct {
		email    string
		username string
		password string
		role     models.UserRole
	}{
		{"alice@test.com", "alice", "password123", models.RoleAdmin},
		{"bob@test.com", "bob", "password123", models.RoleMember},
		{"charlie@test.com", "charlie", "password123", models.RoleMember},
		{"diana@test.com", "diana", "password123", models.RoleMember},
	}

	userIDs := make([]string, 0, len(testUsers))
	for _, userData := range testUsers {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(userData.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		var existing models.User
		result := db.Where("email = ? OR username = ?", userData.email, userData.username).First(&existing)
		if result.Error == nil {
			log.Info("User %s already exists, skipping", userData.username)
			userIDs = append(userIDs, existing.ID)
			continue
		}

		user := &models.User{
			Email:    userData.email,
			Username: userData.username,
			Password: string(hashedPassword),
			Role:     userData.role,
			IsActive: true,
		}
		if err := db.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user %s: %w", userData.username, err)
		}

		log.Info("Created user %s (%s)", user.Username, user.ID)
		userIDs = append(userIDs, user.ID)
	}

	var taskCount int64
	if err := db.Model(&models.Task{}).Count(&taskCount).Error; err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}
	if taskCount > 0 {
		log.Info("Tasks already seeded, skipping")
		return nil
	}

	testTasks := []struct {
		title       string
		description string
		priority    models.TaskPriority
		status      models.TaskStatus
		deadline    time.Duration
		creator     int
		assignees   []int
	}{
		{"Set up CI pipeline", "Builds and tests on every push", models.PriorityHigh, models.StatusInProgress, 72 * time.Hour, 0, []int{1, 2}},
		{"Write onboarding docs", "Cover local setup and deployment", models.PriorityMedium, models.StatusTodo, 14 * 24 * time.Hour, 0, []int{3}},
		{"Fix login redirect", "Users land on a blank page after OAuth", models.PriorityUrgent, models.StatusReview, 24 * time.Hour, 1, []int{2}},
		{"Quarterly dependency upgrade", "", models.PriorityLow, models.StatusTodo, 30 * 24 * time.Hour, 1, nil},
	}

	for _, taskData := range testTasks {
		task := &models.Task{
			Title:       taskData.title,
			Description: taskData.description,
			Deadline:    time.Now().UTC().Add(taskData.deadline),
			Priority:    taskData.priority,
			Status:      taskData.status,
			CreatedBy:   userIDs[taskData.creator],
		}
		if err := db.Create(task).Error; err != nil {
			return fmt.Errorf("failed to create task %q: %w", taskData.title, err)
		}

		for _, assigneeIdx := range taskData.assignees {
			assignment := &models.TaskAssignment{
				TaskID: task.ID,
				UserID: userIDs[assigneeIdx],
			}
			if err := db.Create(assignment).Error; err != nil {
				return fmt.Errorf("failed to assign user to task %q: %w", taskData.title, err)
			}
		}

		log.Info("Created task %q (%s)", task.Title, task.ID)
	}

	return nil
}
