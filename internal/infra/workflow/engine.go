package workflow

import (
	"context"
	"fmt"
	mrand "math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/infra/logging"
	"grid-agent-service/internal/infra/registry"
	"grid-agent-service/internal/infra/stream"
)

// Engine drives one job through the workflow state machine:
//
//	ROUTING -> CLASSIFYING -> PLANNING -> EXECUTING -> COMPOSING -> DONE
//	    any stage error ------------------------------------> FAILED
//
// Each Run owns exactly one goroutine, publishes every event for its
// job in order, closes the job's channel exactly once, and always
// leaves the job in a terminal status. Subscribers therefore never see
// a stream that simply stops: the last event is COMPLETE or ERROR.
type Engine struct {
	reg       *registry.Registry
	stepDelay time.Duration
	log       *zerolog.Logger
}

func NewEngine(reg *registry.Registry, stepDelay time.Duration, logger *zerolog.Logger) *Engine {
	l := logger.With().Str("component", "WorkflowEngine").Logger()
	return &Engine{reg: reg, stepDelay: stepDelay, log: &l}
}

// Run executes the full workflow for job using exec. It is intended
// to be submitted to the worker pool right after job creation.
func (e *Engine) Run(ctx context.Context, job *model.Job, exec StageExecutor) {
	log := e.log.With().Str("job_id", job.ID).Str("mode", string(job.Mode)).Logger()
	defer logging.TraceDuration(&log, "Engine.Run")()

	ch, err := e.reg.Channel(job.ID)
	if err != nil {
		log.Error().Err(err).Msg("no channel for job; was it evicted before start?")
		return
	}

	r := &run{
		engine:  e,
		job:     job,
		ch:      ch,
		log:     &log,
		entropy: ulid.Monotonic(mrand.New(mrand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := e.reg.MarkRunning(ctx, job.ID); err != nil {
		log.Warn().Err(err).Msg("could not mark job running")
		return
	}
	log.Info().Str("prompt", truncate(job.Prompt, 100)).Msg("workflow started")
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("workflow panicked")
			r.finishFailed(fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := r.execute(ctx, exec); err != nil {
		log.Error().Err(err).Msg("workflow failed")
		r.finishFailed(err.Error())
		return
	}

	r.emit(model.EventComplete, "", "", "", 0)
	ch.Close()
	_ = e.reg.MarkComplete(context.Background(), job.ID)
	log.Info().Dur("duration", time.Since(start)).Msg("workflow completed")
}

// run is the per-job execution state.
type run struct {
	engine  *Engine
	job     *model.Job
	ch      *stream.Channel
	log     *zerolog.Logger
	entropy *ulid.MonotonicEntropy
}

func (r *run) execute(ctx context.Context, exec StageExecutor) error {
	// ROUTING
	detail, err := exec.Route(ctx, r.job.Prompt)
	if err != nil {
		return err
	}
	r.emit(model.EventRouted, detail, "user", "User Query", 0)
	if err := r.pause(ctx); err != nil {
		return err
	}

	// CLASSIFYING
	wtype, detail, err := exec.Classify(ctx, r.job.Prompt)
	if err != nil {
		return err
	}
	r.emit(model.EventClassified, detail, "router", "GRID Router", 0)
	if err := r.pause(ctx); err != nil {
		return err
	}

	// PLANNING
	tasks, detail, err := exec.Plan(ctx, r.job.Prompt, wtype)
	if err != nil {
		return err
	}
	r.emit(model.EventWorkflowPlanned, detail, "planner", "Workflow Planner", 0)
	if err := r.pause(ctx); err != nil {
		return err
	}

	// EXECUTING: assign/update/done triad per task, in plan order.
	for i := range tasks {
		t := &tasks[i]
		nodeID := fmt.Sprintf("agent_%d", i)
		r.emit(model.EventTaskAssigned,
			fmt.Sprintf("Assigned to %s: %s", t.Agent, t.Description),
			nodeID, t.Agent, 0)

		progress := func(detail string, pct int) {
			r.emit(model.EventTaskUpdate, detail, nodeID, t.Agent, pct)
		}
		if err := exec.ExecuteTask(ctx, r.job.Prompt, i, t, progress); err != nil {
			return err
		}

		r.emit(model.EventTaskDone,
			fmt.Sprintf("%s completed successfully", t.Agent),
			nodeID, t.Agent, 0)
		if err := r.pause(ctx); err != nil {
			return err
		}
	}

	// COMPOSING
	r.emit(model.EventComposeStart, "Composing results from all agents", "composer", "Result Composer", 0)
	answer, err := exec.Compose(ctx, r.job.Prompt, tasks)
	if err != nil {
		return err
	}
	r.emit(model.EventComposeDone, "Final answer composed", "composer", "Result Composer", 0)
	r.emit(model.EventFinal, answer, "final", "Final Answer", 0)
	return nil
}

// finishFailed emits the single failure event, closes the channel and
// sets the failed terminal status. Uses a background context so
// cleanup survives request/shutdown cancellation.
func (r *run) finishFailed(reason string) {
	r.emit(model.EventError, reason, "", "", 0)
	r.ch.Close()
	_ = r.engine.reg.MarkFailed(context.Background(), r.job.ID, reason)
}

// emit stamps and publishes one event. Publish errors indicate a
// closed channel; that is a bug in the engine's own sequencing, so it
// is logged loudly rather than surfaced to the user.
func (r *run) emit(t model.EventType, detail, nodeID, nodeLabel string, progress int) {
	now := time.Now()
	ev := &model.Event{
		ID:        ulid.MustNew(ulid.Timestamp(now), r.entropy).String(),
		JobID:     r.job.ID,
		Type:      t,
		Detail:    detail,
		NodeID:    nodeID,
		NodeLabel: nodeLabel,
		Progress:  progress,
		Timestamp: now,
	}
	if err := r.ch.Publish(ev); err != nil {
		r.log.Error().Err(err).Str("type", string(t)).Msg("publish after close")
	}
}

// pause spaces out stage events so a UI can animate the workflow.
func (r *run) pause(ctx context.Context) error {
	if r.engine.stepDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(r.engine.stepDelay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("workflow cancelled: %w", ctx.Err())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
