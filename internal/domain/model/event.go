package model

import "time"

// EventType enumerates the workflow lifecycle events, in canonical
// stage order. COMPLETE is a meta-event marking stream end; ERROR is
// the single failure event a stream may end with instead.
type EventType string

const (
	EventRouted          EventType = "ROUTED"
	EventClassified      EventType = "CLASSIFIED"
	EventWorkflowPlanned EventType = "WORKFLOW_PLANNED"
	EventTaskAssigned    EventType = "TASK_ASSIGNED"
	EventTaskUpdate      EventType = "TASK_UPDATE"
	EventTaskDone        EventType = "TASK_DONE"
	EventComposeStart    EventType = "COMPOSE_START"
	EventComposeDone     EventType = "COMPOSE_DONE"
	EventFinal           EventType = "FINAL"
	EventComplete        EventType = "COMPLETE"
	EventError           EventType = "ERROR"
)

// Event is one immutable, timestamped workflow occurrence. Events are
// write-once into a job's channel and observed in publish order.
type Event struct {
	ID        string // ULID, monotonic within a job
	JobID     string
	Type      EventType
	Detail    string
	NodeID    string
	NodeLabel string
	Progress  int // percent, only meaningful for TASK_UPDATE
	Timestamp time.Time
}
