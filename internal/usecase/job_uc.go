package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/infra/logging"
	"grid-agent-service/internal/infra/registry"
	"grid-agent-service/internal/infra/worker"
	"grid-agent-service/internal/infra/workflow"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

type JobUseCase interface {
	// Ask registers a job and schedules its workflow run. The returned
	// snapshot already carries the resolved mode.
	Ask(ctx context.Context, prompt, userID, lessonID string, creds model.Credentials) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	// Attach subscribes the single event consumer for a job. The stream
	// replays everything published so far, then follows live events.
	Attach(ctx context.Context, id string) (<-chan *model.Event, error)
	Stats(ctx context.Context) registry.Stats
}

type jobUC struct {
	reg     *registry.Registry
	factory *workflow.ExecutorFactory
	engine  *workflow.Engine
	pool    *worker.Pool

	log *zerolog.Logger
}

func NewJobUseCase(reg *registry.Registry, factory *workflow.ExecutorFactory, engine *workflow.Engine, pool *worker.Pool, logger *zerolog.Logger) *jobUC {
	ucLog := logger.With().Str("component", "JobUC").Logger()
	return &jobUC{reg: reg, factory: factory, engine: engine, pool: pool, log: &ucLog}
}

func (u *jobUC) Ask(ctx context.Context, prompt, userID, lessonID string, creds model.Credentials) (*model.Job, error) {
	creds = creds.Merge(u.factory.ServerCredentials())

	job, err := u.reg.Create(ctx, prompt, userID, lessonID, creds)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, u.log)

	exec, err := u.factory.ForJob(ctx, job, creds)
	if err != nil {
		u.failBeforeRun(ctx, job.ID, err.Error())
		return nil, err
	}

	if err := u.pool.Submit(func(runCtx context.Context) error {
		u.engine.Run(runCtx, job, exec)
		return nil
	}); err != nil {
		u.failBeforeRun(ctx, job.ID, "scheduling rejected")
		log.Warn().Err(err).Msg("job rejected by worker pool")
		return nil, err
	}

	log.Info().Str("mode", string(job.Mode)).Msg("job accepted")
	return job, nil
}

// failBeforeRun terminates a job whose workflow never started. Like the
// engine's failure path it publishes the single ERROR event and closes
// the channel first, so a subscriber attaching later still sees a
// stream that ends in a failure event instead of one that never opens.
func (u *jobUC) failBeforeRun(ctx context.Context, jobID, reason string) {
	if ch, err := u.reg.Channel(jobID); err == nil {
		_ = ch.Publish(&model.Event{
			ID:        ulid.Make().String(),
			JobID:     jobID,
			Type:      model.EventError,
			Detail:    reason,
			Timestamp: time.Now(),
		})
		ch.Close()
	}
	_ = u.reg.MarkFailed(ctx, jobID, reason)
}

func (u *jobUC) Get(ctx context.Context, id string) (*model.Job, error) {
	return u.reg.Get(ctx, id)
}

func (u *jobUC) Attach(ctx context.Context, id string) (<-chan *model.Event, error) {
	ch, err := u.reg.Channel(id)
	if err != nil {
		return nil, err
	}
	return ch.Subscribe(ctx)
}

func (u *jobUC) Stats(ctx context.Context) registry.Stats {
	return u.reg.Stats()
}
