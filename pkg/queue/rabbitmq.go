package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"taskflow/pkg/config"
	"taskflow/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	TaskEventsExchange     = "task.events"
	NotificationsQueueName = "notifications_queue"
)

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *logger.Logger
}

func NewRabbitMQClient(cfg *config.Config, log *logger.Logger) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.RabbitMQUser,
		cfg.RabbitMQPassword,
		cfg.RabbitMQHost,
		cfg.RabbitMQPort,
	)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// Declare topic exchange for task domain events
	err = channel.ExchangeDeclare(
		TaskEventsExchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare durable queue consumed by the notification service
	_, err = channel.QueueDeclare(
		NotificationsQueueName, // name
		true,                   // durable
		false,                  // delete when unused
		false,                  // exclusive
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind all task and comment events into the notifications queue
	for _, routingKey := range []string{"task.*", "comment.*"} {
		err = channel.QueueBind(
			NotificationsQueueName, // queue name
			routingKey,             // routing key
			TaskEventsExchange,     // exchange
			false,
			nil,
		)
		if err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	log.Info("Connected to RabbitMQ at %s:%s", cfg.RabbitMQHost, cfg.RabbitMQPort)

	return &Client{
		conn:    conn,
		channel: channel,
		logger:  log,
	}, nil
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PublishEvent publishes a domain event to the task events exchange. The
// event kind is used as the routing key and messages are persistent.
func (c *Client) PublishEvent(event *TaskEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = c.channel.Publish(
		TaskEventsExchange, // exchange
		event.Kind,         // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         eventJSON,
			MessageId:    event.ID,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		c.logger.Error("[RABBITMQ] Failed to publish event kind=%s, subject=%s: %v", event.Kind, event.SubjectID, err)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	c.logger.Info("[RABBITMQ] Published event kind=%s, subject=%s, interested=%d", event.Kind, event.SubjectID, len(event.InterestedUserIDs))
	return nil
}

// ConsumeEvents consumes domain events from the notifications queue. Messages
// are acked only after the handler succeeds; handler errors requeue the
// message, malformed messages are dropped.
func (c *Client) ConsumeEvents(handler func(event *TaskEvent) error) error {
	msgs, err := c.channel.Consume(
		NotificationsQueueName, // queue
		"",                     // consumer
		false,                  // auto-ack (we'll manually ack after processing)
		false,                  // exclusive
		false,                  // no-local
		false,                  // no-wait
		nil,                    // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("[RABBITMQ] Started consuming from queue: %s", NotificationsQueueName)

	go func() {
		for msg := range msgs {
			var event TaskEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				c.logger.Error("[RABBITMQ] Failed to unmarshal event: %v, body=%s", err, string(msg.Body))
				msg.Nack(false, false) // Reject and don't requeue
				continue
			}

			if err := handler(&event); err != nil {
				c.logger.Error("[RABBITMQ] Handler failed for event kind=%s, id=%s: %v", event.Kind, event.ID, err)
				msg.Nack(false, true) // Reject and requeue
				continue
			}

			msg.Ack(false)
			c.logger.Info("[RABBITMQ] Processed and acknowledged event kind=%s, id=%s", event.Kind, event.ID)
		}
	}()

	return nil
}

// GetQueueLength returns the number of messages in the notifications queue.
func (c *Client) GetQueueLength() (int, error) {
	queue, err := c.channel.QueueInspect(NotificationsQueueName)
	if err != nil {
		return 0, err
	}
	return queue.Messages, nil
}
