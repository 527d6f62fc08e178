package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// Handler performs one kind of side effect.
type Handler func(ctx context.Context, payload json.RawMessage) error

const (
	defaultWorkerCount  = 2
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 30 * time.Second
	maxRetryDelay       = 15 * time.Minute
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeout       = 5 * time.Second
)

// Runner drains the queue and dispatches tasks to their handlers.
type Runner struct {
	queue       Queue
	publisher   *Publisher
	deadLetters DeadLetterStore
	handlers    map[Kind]Handler
	logger      *logging.Logger
	metrics     *metrics.BookingMetrics
	now         func() time.Time

	workers     int
	maxAttempts int
	baseDelay   time.Duration
	waitSeconds int
	batchSize   int

	wg sync.WaitGroup
}

func NewRunner(queue Queue, deadLetters DeadLetterStore, logger *logging.Logger, m *metrics.BookingMetrics) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	if deadLetters == nil {
		deadLetters = NewMemoryDeadLetterStore()
	}
	return &Runner{
		queue:       queue,
		publisher:   NewPublisher(queue, logger),
		deadLetters: deadLetters,
		handlers:    make(map[Kind]Handler),
		logger:      logger.WithComponent("tasks"),
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
		workers:     defaultWorkerCount,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		waitSeconds: defaultWaitSeconds,
		batchSize:   defaultBatchSize,
	}
}

func (r *Runner) WithWorkers(n int) *Runner {
	if n > 0 {
		r.workers = n
	}
	return r
}

func (r *Runner) WithMaxAttempts(n int) *Runner {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

func (r *Runner) WithBaseDelay(d time.Duration) *Runner {
	if d > 0 {
		r.baseDelay = d
	}
	return r
}

func (r *Runner) WithReceiveWaitSeconds(seconds int) *Runner {
	if seconds < 0 {
		return r
	}
	if seconds > maxWaitSeconds {
		seconds = maxWaitSeconds
	}
	r.waitSeconds = seconds
	return r
}

func (r *Runner) WithBatchSize(n int) *Runner {
	if n <= 0 {
		return r
	}
	if n > maxReceiveBatchSize {
		n = maxReceiveBatchSize
	}
	r.batchSize = n
	return r
}

// Handle registers h for kind.
func (r *Runner) Handle(kind Kind, h Handler) *Runner {
	r.handlers[kind] = h
	return r
}

// Start launches the workers. They stop when ctx is cancelled; Wait blocks
// until they have.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.loop(ctx, i)
	}
	r.logger.Info("task runner started", "workers", r.workers, "max_attempts", r.maxAttempts)
}

func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, worker int) {
	defer r.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		msgs, err := r.queue.Receive(ctx, r.batchSize, r.waitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			r.logger.Error("task receive failed", "worker", worker, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for _, msg := range msgs {
			r.Process(ctx, msg)
		}
	}
}

// Process handles a single queue message: run, retry with backoff, or
// dead-letter. The message is deleted once its fate is recorded.
func (r *Runner) Process(ctx context.Context, msg Message) {
	task, err := decodeTask(msg.Body)
	if err != nil {
		raw, _ := json.Marshal(msg.Body)
		r.deadLetter(ctx, msg, Task{
			ID:         msg.ID,
			Kind:       "unknown",
			Payload:    raw,
			LastError:  err.Error(),
			EnqueuedAt: r.now(),
		})
		return
	}

	handler, ok := r.handlers[task.Kind]
	if !ok {
		task.LastError = fmt.Sprintf("%v: %s", ErrUnknownKind, task.Kind)
		r.deadLetter(ctx, msg, task)
		return
	}

	if err := handler(ctx, task.Payload); err != nil {
		task.Attempts++
		task.LastError = err.Error()
		if task.Attempts >= r.maxAttempts {
			r.logger.Warn("task exhausted retries", "task_id", task.ID, "kind", task.Kind, "attempts", task.Attempts, "error", err)
			r.deadLetter(ctx, msg, task)
			return
		}
		delay := NextDelay(r.baseDelay, task.Attempts)
		if pubErr := r.publisher.Publish(ctx, task, delay); pubErr != nil {
			// Leave the message in place; SQS redelivers it after the visibility timeout.
			r.logger.Error("task retry enqueue failed", "task_id", task.ID, "kind", task.Kind, "error", pubErr)
			return
		}
		r.logger.Info("task retry scheduled", "task_id", task.ID, "kind", task.Kind, "attempts", task.Attempts, "delay", delay, "error", err)
		r.metrics.ObserveTask(string(task.Kind), "retry")
		r.delete(msg)
		return
	}

	r.metrics.ObserveTask(string(task.Kind), "ok")
	r.delete(msg)
}

func (r *Runner) deadLetter(ctx context.Context, msg Message, task Task) {
	dl := deadLetterFrom(task, r.now())
	if err := r.deadLetters.Put(ctx, dl); err != nil {
		r.logger.Error("dead letter write failed", "task_id", task.ID, "kind", task.Kind, "error", err)
		return
	}
	r.logger.Warn("task dead-lettered", "task_id", task.ID, "kind", task.Kind, "reason", task.LastError)
	r.metrics.ObserveTask(string(task.Kind), "dead_letter")
	r.metrics.ObserveDeadLetter(string(task.Kind))
	r.delete(msg)
}

func (r *Runner) delete(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := r.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		r.logger.Error("task delete failed", "message_id", msg.ID, "error", err)
	}
}

// NextDelay is base × 2^(attempts-1), capped at fifteen minutes.
func NextDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 16 {
		return maxRetryDelay
	}
	delay := base * time.Duration(1<<(attempts-1))
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	return delay
}
