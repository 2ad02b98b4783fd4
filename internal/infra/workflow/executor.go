package workflow

import "context"

// Task is one planned unit of the EXECUTING stage.
type Task struct {
	Agent       string // display label, e.g. "Research Agent"
	Description string
	Result      string // filled by ExecuteTask
}

// ProgressFunc reports TASK_UPDATE progress while a task runs.
type ProgressFunc func(detail string, progress int)

// StageExecutor is the capability the engine drives at each stage.
// The live and demo modes are interchangeable implementations selected
// once at job creation; the engine itself has no mode conditionals.
// Any returned error is unrecoverable: the engine converts it into a
// single failure event and the failed terminal status.
type StageExecutor interface {
	// Route produces the ROUTED detail text.
	Route(ctx context.Context, prompt string) (string, error)

	// Classify buckets the prompt into a workflow type and returns
	// the CLASSIFIED detail text.
	Classify(ctx context.Context, prompt string) (workflowType, detail string, err error)

	// Plan decomposes the prompt into ordered tasks and returns the
	// WORKFLOW_PLANNED detail text. A single-task plan is valid.
	Plan(ctx context.Context, prompt, workflowType string) ([]Task, string, error)

	// ExecuteTask runs one task, reporting progress through emit and
	// storing its outcome in task.Result.
	ExecuteTask(ctx context.Context, prompt string, idx int, task *Task, emit ProgressFunc) error

	// Compose synthesizes the FINAL answer from completed tasks.
	Compose(ctx context.Context, prompt string, tasks []Task) (string, error)
}
