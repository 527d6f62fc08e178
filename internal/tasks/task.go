// Package tasks runs best-effort side effects (sheet rows, failure emails,
// archive snapshots) off the request path with bounded retries.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects the handler for a task.
type Kind string

const (
	KindSheetAppend       Kind = "sheet.append"
	KindOrderFailureEmail Kind = "email.order_failure"
	KindArchiveOrder      Kind = "archive.order"
)

var (
	ErrDeadLetterNotFound = errors.New("tasks: dead letter not found")
	ErrUnknownKind        = errors.New("tasks: no handler for kind")
)

// Task is the queue message body.
type Task struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTask marshals payload into a fresh task.
func NewTask(kind Kind, payload interface{}) (Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: encode %s payload: %w", kind, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func encodeTask(t Task) (string, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("tasks: encode task: %w", err)
	}
	return string(body), nil
}

func decodeTask(body string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return Task{}, fmt.Errorf("tasks: decode task: %w", err)
	}
	if t.Kind == "" {
		return Task{}, errors.New("tasks: decode task: missing kind")
	}
	return t, nil
}

// DeadLetter is a task that exhausted its attempts or could not be dispatched.
type DeadLetter struct {
	ID         string          `dynamodbav:"id" json:"id"`
	Kind       Kind            `dynamodbav:"kind" json:"kind"`
	Payload    json.RawMessage `dynamodbav:"payload" json:"payload"`
	Attempts   int             `dynamodbav:"attempts" json:"attempts"`
	LastError  string          `dynamodbav:"lastError,omitempty" json:"last_error,omitempty"`
	EnqueuedAt time.Time       `dynamodbav:"enqueuedAt" json:"enqueued_at"`
	FailedAt   time.Time       `dynamodbav:"failedAt" json:"failed_at"`
}

func deadLetterFrom(t Task, failedAt time.Time) DeadLetter {
	return DeadLetter{
		ID:         t.ID,
		Kind:       t.Kind,
		Payload:    t.Payload,
		Attempts:   t.Attempts,
		LastError:  t.LastError,
		EnqueuedAt: t.EnqueuedAt,
		FailedAt:   failedAt,
	}
}

// Task rebuilds a fresh task from the dead letter, with attempts reset.
func (d DeadLetter) Task() Task {
	return Task{
		ID:         d.ID,
		Kind:       d.Kind,
		Payload:    d.Payload,
		EnqueuedAt: time.Now().UTC(),
	}
}
