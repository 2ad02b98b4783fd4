package model

import "time"

// JobStatus is the lifecycle state of a workflow job. Transitions are
// monotonic: pending -> running -> complete|failed, never backwards.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// Mode decides how workflow stages produce their output.
type Mode string

const (
	// ModeLive calls a real LLM provider for every stage.
	ModeLive Mode = "live"
	// ModeDemo synthesizes deterministic educational content; no
	// external calls are made, so demo jobs cannot fail on providers.
	ModeDemo Mode = "demo"
)

// Job is one tracked unit of work: a user prompt and its workflow run.
// ID, Prompt, Mode and CreatedAt are immutable after creation.
type Job struct {
	ID         string
	Prompt     string
	UserID     string
	LessonID   string
	Mode       Mode
	Status     JobStatus
	FailReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
