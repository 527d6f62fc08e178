package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// Publisher enqueues tasks.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger.WithComponent("tasks")}
}

// Enqueue wraps payload in a new task of the given kind.
func (p *Publisher) Enqueue(ctx context.Context, kind Kind, payload interface{}) error {
	task, err := NewTask(kind, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, task, 0)
}

// Publish sends an already-built task after delay.
func (p *Publisher) Publish(ctx context.Context, task Task, delay time.Duration) error {
	if p == nil || p.queue == nil {
		return errors.New("tasks: publisher not configured")
	}
	body, err := encodeTask(task)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body, delay); err != nil {
		return err
	}
	p.logger.Debug("task enqueued", "task_id", task.ID, "kind", task.Kind, "attempts", task.Attempts, "delay", delay)
	return nil
}
