package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskflow/pkg/logger"
	"taskflow/pkg/queue"
	"taskflow/services/notification/internal/entity"
	"taskflow/services/notification/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockNotificationUseCase is a mock implementation of NotificationUseCase
type MockNotificationUseCase struct {
	mock.Mock
}

func (m *MockNotificationUseCase) HandleEvent(event *queue.TaskEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockNotificationUseCase) GetNotifications(userID string, page, limit int, status string) ([]entity.Notification, int64, error) {
	args := m.Called(userID, page, limit, status)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationUseCase) MarkAsRead(userID, notificationID string) (*entity.Notification, error) {
	args := m.Called(userID, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Notification), args.Error(1)
}

func (m *MockNotificationUseCase) MarkAllAsRead(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockNotificationUseCase) UnreadCount(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

var _ usecase.NotificationUseCase = (*MockNotificationUseCase)(nil)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestGetNotifications(t *testing.T) {
	mockUseCase := new(MockNotificationUseCase)
	handler := NewNotificationHandler(mockUseCase, logger.New())

	router := setupTestRouter()
	router.GET("/notifications", func(c *gin.Context) {
		c.Set("user_id", "user-123")
		handler.GetNotifications(c)
	})

	notifications := []entity.Notification{
		{ID: "n-1", UserID: "user-123", Title: "Task Assigned", Status: entity.StatusUnread},
	}
	mockUseCase.On("GetNotifications", "user-123", 2, 10, "unread").Return(notifications, int64(25), nil)

	req := httptest.NewRequest(http.MethodGet, "/notifications?page=2&limit=10&status=unread", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, float64(25), meta["total"])
	assert.Equal(t, float64(2), meta["page"])
	assert.Equal(t, float64(10), meta["limit"])
	assert.Equal(t, float64(3), meta["totalPages"])

	data := response["data"].([]interface{})
	assert.Len(t, data, 1)
	mockUseCase.AssertExpectations(t)
}

func TestGetNotifications_DefaultPagination(t *testing.T) {
	mockUseCase := new(MockNotificationUseCase)
	handler := NewNotificationHandler(mockUseCase, logger.New())

	router := setupTestRouter()
	router.GET("/notifications", func(c *gin.Context) {
		c.Set("user_id", "user-123")
		handler.GetNotifications(c)
	})

	mockUseCase.On("GetNotifications", "user-123", 1, 20, "").Return([]entity.Notification{}, int64(0), nil)

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockUseCase.AssertExpectations(t)
}

func TestGetNotifications_Error(t *testing.T) {
	mockUseCase := new(MockNotificationUseCase)
	handler := NewNotificationHandler(mockUseCase, logger.New())

	router := setupTestRouter()
	router.GET("/notifications", func(c *gin.Context) {
		c.Set("user_id", "user-123")
		handler.GetNotifications(c)
	})

	mockUseCase.On("GetNotifications", "user-123", 1, 20, "").Return(nil, int64(0), errors.New("database unavailable"))

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetUnreadCount(t *testing.T) {
	mockUseCase := new(MockNotificationUseCase)
	handler := NewNotificationHandler(mockUseCase, logger.New())

	router := setupTestRouter()
	router.GET("/notifications/unread-count", func(c *gin.Context) {
		c.Set("user_id", "user-123")
		handler.GetUnreadCount(c)
	})

	mockUseCase.On("UnreadCount", "user-123").Return(int64(7), nil)

	req := httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(7), response["count"])
}

func TestMarkAsRead(t *testing.T) {
	mockUseCase := new(MockNotificationUseCase)
	handler := NewNotificationHandler(mockUseCase, logger.New())

	router := setupTestRouter()
	router.PUT("/notifications/:id/read", func(c *gin.Context) {
		c.Set("user_id", "user-123")
		handler.MarkAsRead(c)
	})

	notification := &entity.Notification{ID: "n-1", UserID: "user-123", Status: entity.StatusRead}
	mockUseCase.On("MarkAsRead", "user-123", "n-1").Return(notification, nil)

	req := httptest.NewRequest(http.MethodPut, "/notifications/n-1/read", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockUseCase.AssertExpectations(t)
}

func TestMarkAsRead_NotFound(t *testing.T) {
	mockUseCase := new(MockNotificationUseCase)
	handler := NewNotificationHandler(mockUseCase, logger.New())

	router := setupTestRouter()
	router.PUT("/notifications/:id/read", func(c *gin.Context) {
		c.Set("user_id", "user-123")
		handler.MarkAsRead(c)
	})

	mockUseCase.On("MarkAsRead", "user-123", "missing").Return(nil, errors.New("notification not found"))

	req := httptest.NewRequest(http.MethodPut, "/notifications/missing/read", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkAllAsRead(t *testing.T) {
	mockUseCase := new(MockNotificationUseCase)
	handler := NewNotificationHandler(mockUseCase, logger.New())

	router := setupTestRouter()
	router.PUT("/notifications/read-all", func(c *gin.Context) {
		c.Set("user_id", "user-123")
		handler.MarkAllAsRead(c)
	})

	mockUseCase.On("MarkAllAsRead", "user-123").Return(nil)

	req := httptest.NewRequest(http.MethodPut, "/notifications/read-all", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockUseCase.AssertExpectations(t)
}
