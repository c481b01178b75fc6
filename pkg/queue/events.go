package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds double as RabbitMQ routing keys.
const (
	EventTaskCreated    = "task.created"
	EventTaskUpdated    = "task.updated"
	EventCommentCreated = "comment.created"
	EventTaskAssigned   = "task.assigned"
)

// TaskEvent is the envelope published for every domain event. InterestedUserIDs
// lists the users that should be notified; the acting user is excluded before
// the event is published.
type TaskEvent struct {
	ID                string                 `json:"id"`
	Kind              string                 `json:"kind"`
	SubjectID         string                 `json:"subjectId"`
	Payload           map[string]interface{} `json:"payload"`
	InterestedUserIDs []string               `json:"interestedUserIds"`
	ActorID           string                 `json:"actorId"`
	OccurredAt        time.Time              `json:"occurredAt"`
}

func NewTaskEvent(kind, subjectID string, payload map[string]interface{}, interestedUserIDs []string, actorID string) *TaskEvent {
	return &TaskEvent{
		ID:                uuid.New().String(),
		Kind:              kind,
		SubjectID:         subjectID,
		Payload:           payload,
		InterestedUserIDs: interestedUserIDs,
		ActorID:           actorID,
		OccurredAt:        time.Now().UTC(),
	}
}
