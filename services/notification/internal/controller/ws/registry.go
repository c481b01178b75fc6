package ws

import (
	"sync"

	"taskflow/pkg/logger"
	"taskflow/services/notification/internal/entity"
)

// Conn is one live, authenticated client connection inside a user room.
type Conn interface {
	SendNotification(notification *entity.Notification) error
}

// Registry tracks which connections belong to which user's room. It is the
// only shared mutable state in the push gateway and is safe for concurrent
// use.
type Registry interface {
	Register(userID string, conn Conn)
	Unregister(userID string, conn Conn)
	DeliverTo(userID string, notification *entity.Notification)
	ConnectionCount(userID string) int
}

type roomRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]map[Conn]struct{}
	logger *logger.Logger
}

func NewRegistry(log *logger.Logger) Registry {
	return &roomRegistry{
		rooms:  make(map[string]map[Conn]struct{}),
		logger: log,
	}
}

func (r *roomRegistry) Register(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[userID]
	if !ok {
		room = make(map[Conn]struct{})
		r.rooms[userID] = room
	}
	room[conn] = struct{}{}
}

func (r *roomRegistry) Unregister(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[userID]
	if !ok {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(r.rooms, userID)
	}
}

// DeliverTo pushes a notification to every connection in the user's room.
// An empty room is not an error: the client catches up through the pull API
// on its next connect.
func (r *roomRegistry) DeliverTo(userID string, notification *entity.Notification) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.rooms[userID]))
	for conn := range r.rooms[userID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	if len(conns) == 0 {
		r.logger.Warn("No active connections for user %s", userID)
		return
	}

	for _, conn := range conns {
		if err := conn.SendNotification(notification); err != nil {
			r.logger.Error("Failed to push notification %s to user %s: %v", notification.ID, userID, err)
		}
	}
	r.logger.Info("Notification sent to user %s (%d clients)", userID, len(conns))
}

func (r *roomRegistry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[userID])
}
