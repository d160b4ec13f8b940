package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Domain event types.
const (
	UserRegistered     = "user.registered"
	UserDeleted        = "user.deleted"
	PasswordChanged    = "user.password_changed"
	PasswordReset      = "user.password_reset"
	ProjectCreated     = "project.created"
	ProjectUpdated     = "project.updated"
	ProjectDeleted     = "project.deleted"
	ProjectStatusSet   = "project.status_changed"
	ProjectMemberAdded = "project.member_added"
	ProjectMemberGone  = "project.member_removed"
	TaskCreated        = "task.created"
	TaskUpdated        = "task.updated"
	TaskDeleted        = "task.deleted"
	TaskStatusSet      = "task.status_changed"
	TaskAssigned       = "task.assigned"
	TaskCommented      = "task.commented"
)

var (
	ErrQueueFull  = errors.New("event queue is full")
	ErrQueueEmpty = errors.New("event queue is empty")
)

type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	ActorID     string          `json:"actorId,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempts    int             `json:"attempts"`
}

// Queue buffers events between request handlers and the event worker.
type Queue interface {
	Enqueue(ctx context.Context, e Event) error
	// Dequeue waits briefly for an event and returns ErrQueueEmpty on timeout.
	Dequeue(ctx context.Context) (Event, error)
}

// Publisher delivers events to their final destination.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}
