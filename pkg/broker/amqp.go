package broker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oscied/orchestra/pkg/types"
)

const publishTimeout = 10 * time.Second

// revokeExchange is a fanout every worker listens on for cancellations.
const revokeExchange = "orchestra.revoke"

// AMQPQueue implements JobQueue on a RabbitMQ broker.
type AMQPQueue struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

// NewAMQPQueue connects to the broker and declares the revoke exchange.
func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, types.Wrap(types.ErrTransient, "connect to broker", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, types.Wrap(types.ErrTransient, "open broker channel", err)
	}
	if err := channel.ExchangeDeclare(revokeExchange, "fanout", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, types.Wrap(types.ErrTransient, "declare revoke exchange", err)
	}
	return &AMQPQueue{conn: conn, channel: channel, declared: map[string]bool{}}, nil
}

func (q *AMQPQueue) ensureQueue(name string) error {
	if q.declared[name] {
		return nil
	}
	if _, err := q.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return types.Wrap(types.ErrTransient, "declare queue "+name, err)
	}
	q.declared[name] = true
	return nil
}

// Submit publishes a job to the named queue and returns the task id.
func (q *AMQPQueue) Submit(queue, name string, payload any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.ensureQueue(queue); err != nil {
		return "", err
	}

	job := Job{TaskID: types.NewID(), Name: name, Payload: payload}
	body, err := json.Marshal(job)
	if err != nil {
		return "", types.Wrap(types.ErrTransient, "encode job", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = q.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.TaskID,
		Body:         body,
	})
	if err != nil {
		return "", types.Wrap(types.ErrTransient, "publish job", err)
	}
	return job.TaskID, nil
}

// Revoke broadcasts a cancellation for a running or queued task.
func (q *AMQPQueue) Revoke(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := q.channel.PublishWithContext(ctx, revokeExchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        []byte(`{"task_id":"` + taskID + `"}`),
	})
	if err != nil {
		return types.Wrap(types.ErrTransient, "publish revoke", err)
	}
	return nil
}

// Close shuts the channel and connection
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
