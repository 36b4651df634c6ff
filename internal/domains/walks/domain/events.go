package domain

import "time"

// Event is the base interface for all domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// WalkRequested is raised when an owner creates a walk.
type WalkRequested struct {
	BaseEvent
	WalkID    string
	OwnerID   string
	PetCount  int
	TotalCost float64
}

// EventName returns the event type identifier.
func (e WalkRequested) EventName() string {
	return "walks.walk.requested"
}

// WalkClaimed is raised when a walker takes a requested walk.
type WalkClaimed struct {
	BaseEvent
	WalkID   string
	WalkerID string
}

// EventName returns the event type identifier.
func (e WalkClaimed) EventName() string {
	return "walks.walk.claimed"
}

// WalkStarted is raised when the assigned walker picks the pets up.
type WalkStarted struct {
	BaseEvent
	WalkID   string
	WalkerID string
}

// EventName returns the event type identifier.
func (e WalkStarted) EventName() string {
	return "walks.walk.started"
}

// WalkCompleted is raised when the end code is verified.
type WalkCompleted struct {
	BaseEvent
	WalkID   string
	WalkerID string
}

// EventName returns the event type identifier.
func (e WalkCompleted) EventName() string {
	return "walks.walk.completed"
}

// AggregateWithEvents is implemented by aggregates that track domain events.
type AggregateWithEvents interface {
	Events() []Event
	ClearEvents()
}

var _ AggregateWithEvents = (*Walk)(nil)
