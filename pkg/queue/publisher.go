package queue

import (
	"time"

	"taskflow/pkg/logger"
)

// EventPublisher is the fire-and-forget publish contract used by the CRUD
// services. Publish never returns an error: event delivery is best-effort and
// must not fail the operation that triggered it.
type EventPublisher interface {
	Publish(kind, subjectID string, payload map[string]interface{}, interestedUserIDs []string, actorID string)
}

// Broker abstracts the underlying queue client so the publisher can be tested
// without a live RabbitMQ connection.
type Broker interface {
	PublishEvent(event *TaskEvent) error
}

const (
	publishBufferSize  = 256
	publishMaxAttempts = 3
	publishRetryDelay  = 500 * time.Millisecond
)

// Publisher decouples event publishing from the request path. Events enter a
// buffered channel and a dedicated worker drains it, retrying failed
// publishes. When the buffer is full the event is dropped and logged.
type Publisher struct {
	broker Broker
	logger *logger.Logger
	events chan *TaskEvent
	done   chan struct{}
}

func NewPublisher(broker Broker, log *logger.Logger) *Publisher {
	p := &Publisher{
		broker: broker,
		logger: log,
		events: make(chan *TaskEvent, publishBufferSize),
		done:   make(chan struct{}),
	}

	go p.worker()

	return p
}

func (p *Publisher) Publish(kind, subjectID string, payload map[string]interface{}, interestedUserIDs []string, actorID string) {
	event := NewTaskEvent(kind, subjectID, payload, interestedUserIDs, actorID)

	select {
	case p.events <- event:
	default:
		p.logger.Error("[PUBLISHER] Outbound buffer full, dropping event kind=%s, subject=%s", kind, subjectID)
	}
}

// Stop drains remaining buffered events and stops the worker.
func (p *Publisher) Stop() {
	close(p.events)
	<-p.done
}

func (p *Publisher) worker() {
	defer close(p.done)

	for event := range p.events {
		p.publishWithRetry(event)
	}
}

func (p *Publisher) publishWithRetry(event *TaskEvent) {
	var err error
	for attempt := 1; attempt <= publishMaxAttempts; attempt++ {
		if err = p.broker.PublishEvent(event); err == nil {
			return
		}
		p.logger.Warn("[PUBLISHER] Publish attempt %d/%d failed for event kind=%s, id=%s: %v", attempt, publishMaxAttempts, event.Kind, event.ID, err)
		if attempt < publishMaxAttempts {
			time.Sleep(publishRetryDelay)
		}
	}

	// Best-effort: after exhausting retries the event is dropped, never
	// surfaced to the CRUD operation that triggered it.
	p.logger.Error("[PUBLISHER] Giving up on event kind=%s, id=%s after %d attempts: %v", event.Kind, event.ID, publishMaxAttempts, err)
}
