package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskflow/pkg/logger"
	"taskflow/pkg/models"
	"taskflow/services/task/internal/repo/persistent"
	"taskflow/services/task/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockTaskUseCase is a mock implementation of TaskUseCase
type MockTaskUseCase struct {
	mock.Mock
}

func (m *MockTaskUseCase) CreateTask(userID string, input usecase.CreateTaskInput) (*models.Task, error) {
	args := m.Called(userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskUseCase) GetTask(taskID string) (*models.Task, error) {
	args := m.Called(taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskUseCase) ListTasks(filter persistent.TaskFilter, page, limit int) ([]models.Task, int64, error) {
	args := m.Called(filter, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Task), args.Get(1).(int64), args.Error(2)
}

func (m *MockTaskUseCase) UpdateTask(taskID, userID string, input usecase.UpdateTaskInput) (*models.Task, error) {
	args := m.Called(taskID, userID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskUseCase) DeleteTask(taskID, userID string) error {
	args := m.Called(taskID, userID)
	return args.Error(0)
}

func (m *MockTaskUseCase) AssignUser(taskID, actorID, userID string) error {
	args := m.Called(taskID, actorID, userID)
	return args.Error(0)
}

func (m *MockTaskUseCase) UnassignUser(taskID, actorID, userID string) error {
	args := m.Called(taskID, actorID, userID)
	return args.Error(0)
}

func (m *MockTaskUseCase) GetHistory(taskID string) ([]models.TaskHistory, error) {
	args := m.Called(taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TaskHistory), args.Error(1)
}

func (m *MockTaskUseCase) GetStats(createdBy string) (*persistent.TaskStats, error) {
	args := m.Called(createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*persistent.TaskStats), args.Error(1)
}

func (m *MockTaskUseCase) UploadAttachment(taskID, userID string, file *multipart.FileHeader) (*models.TaskAttachment, error) {
	args := m.Called(taskID, userID, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TaskAttachment), args.Error(1)
}

func (m *MockTaskUseCase) ListAttachments(taskID string) ([]models.TaskAttachment, error) {
	args := m.Called(taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TaskAttachment), args.Error(1)
}

func (m *MockTaskUseCase) DeleteAttachment(taskID, attachmentID, userID string) error {
	args := m.Called(taskID, attachmentID, userID)
	return args.Error(0)
}

var _ usecase.TaskUseCase = (*MockTaskUseCase)(nil)

// MockCommentUseCase is a mock implementation of CommentUseCase
type MockCommentUseCase struct {
	mock.Mock
}

func (m *MockCommentUseCase) CreateComment(taskID, authorID, content string) (*models.Comment, error) {
	args := m.Called(taskID, authorID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentUseCase) GetComments(taskID string, page, limit int) ([]models.Comment, int64, error) {
	args := m.Called(taskID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Comment), args.Get(1).(int64), args.Error(2)
}

func (m *MockCommentUseCase) DeleteComment(taskID, commentID, userID string) error {
	args := m.Called(taskID, commentID, userID)
	return args.Error(0)
}

var _ usecase.CommentUseCase = (*MockCommentUseCase)(nil)

func setupHandler() (*TaskHandler, *MockTaskUseCase, *MockCommentUseCase, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	mockTasks := new(MockTaskUseCase)
	mockComments := new(MockCommentUseCase)
	handler := NewTaskHandler(mockTasks, mockComments, logger.New())
	return handler, mockTasks, mockComments, gin.New()
}

func asUser(userID string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		h(c)
	}
}

func TestCreateTask(t *testing.T) {
	handler, mockTasks, _, router := setupHandler()
	router.POST("/tasks", asUser("user-1", handler.CreateTask))

	task := &models.Task{ID: "task-1", Title: "Ship release", CreatedBy: "user-1"}
	mockTasks.On("CreateTask", "user-1", mock.MatchedBy(func(input usecase.CreateTaskInput) bool {
		return input.Title == "Ship release" && len(input.AssigneeIDs) == 2
	})).Return(task, nil)

	body, _ := json.Marshal(gin.H{"title": "Ship release", "assigneeIds": []string{"a", "b"}})
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockTasks.AssertExpectations(t)
}

func TestCreateTask_MissingTitle(t *testing.T) {
	handler, _, _, router := setupHandler()
	router.POST("/tasks", asUser("user-1", handler.CreateTask))

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTask_NotFound(t *testing.T) {
	handler, mockTasks, _, router := setupHandler()
	router.GET("/tasks/:id", handler.GetTask)

	mockTasks.On("GetTask", "missing").Return(nil, errors.New("task not found"))

	req := httptest.NewRequest(http.MethodGet, "/tasks/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTasks_Filters(t *testing.T) {
	handler, mockTasks, _, router := setupHandler()
	router.GET("/tasks", handler.ListTasks)

	expectedFilter := persistent.TaskFilter{Status: "todo", Priority: "high", AssigneeID: "user-a"}
	mockTasks.On("ListTasks", expectedFilter, 1, 20).Return([]models.Task{{ID: "task-1"}}, int64(1), nil)

	req := httptest.NewRequest(http.MethodGet, "/tasks?status=todo&priority=high&assigneeId=user-a", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockTasks.AssertExpectations(t)
}

func TestUpdateTask_InvalidStatus(t *testing.T) {
	handler, mockTasks, _, router := setupHandler()
	router.PUT("/tasks/:id", asUser("user-1", handler.UpdateTask))

	mockTasks.On("UpdateTask", "task-1", "user-1", mock.Anything).Return(nil, errors.New("invalid status: later"))

	body, _ := json.Marshal(gin.H{"status": "later"})
	req := httptest.NewRequest(http.MethodPut, "/tasks/task-1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTask_Forbidden(t *testing.T) {
	handler, mockTasks, _, router := setupHandler()
	router.DELETE("/tasks/:id", asUser("intruder", handler.DeleteTask))

	mockTasks.On("DeleteTask", "task-1", "intruder").Return(errors.New("only the task creator can delete a task"))

	req := httptest.NewRequest(http.MethodDelete, "/tasks/task-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAssignUser_Conflict(t *testing.T) {
	handler, mockTasks, _, router := setupHandler()
	router.POST("/tasks/:id/assignments", asUser("user-1", handler.AssignUser))

	mockTasks.On("AssignUser", "task-1", "user-1", "user-a").Return(errors.New("user is already assigned to this task"))

	body, _ := json.Marshal(gin.H{"userId": "user-a"})
	req := httptest.NewRequest(http.MethodPost, "/tasks/task-1/assignments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateComment(t *testing.T) {
	handler, _, mockComments, router := setupHandler()
	router.POST("/tasks/:id/comments", asUser("user-1", handler.CreateComment))

	comment := &models.Comment{ID: "c-1", TaskID: "task-1", AuthorID: "user-1", Content: "hello"}
	mockComments.On("CreateComment", "task-1", "user-1", "hello").Return(comment, nil)

	body, _ := json.Marshal(gin.H{"content": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/tasks/task-1/comments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockComments.AssertExpectations(t)
}

func TestGetStats(t *testing.T) {
	handler, mockTasks, _, router := setupHandler()
	router.GET("/tasks/stats", handler.GetStats)

	stats := &persistent.TaskStats{Total: 5, ByStatus: map[string]int64{"todo": 5}, ByPriority: map[string]int64{"medium": 5}}
	mockTasks.On("GetStats", "").Return(stats, nil)

	req := httptest.NewRequest(http.MethodGet, "/tasks/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(5), data["total"])
}
