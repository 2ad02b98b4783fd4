package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"grid-agent-service/internal/domain"
	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/infra/metrics"
	"grid-agent-service/internal/infra/stream"
)

// ModeFunc decides live/demo at creation time from the supplied
// credentials. It is a pure function; the decision never changes for
// the life of the job.
type ModeFunc func(model.Credentials) model.Mode

// Options bound registry behavior.
type Options struct {
	MaxPromptLen  int
	IdleTTL       time.Duration
	ChannelBuffer int
}

// Registry owns job identity, lifecycle state and each job's event
// channel. It is an explicitly owned, lifecycle-scoped store:
// constructed at process start, shared by all request handlers and
// job goroutines, safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	mode    ModeFunc
	opts    Options
	log     *zerolog.Logger

	// cumulative counters for the stats endpoint
	created   int64
	completed int64
	failed    int64
}

type entry struct {
	job          *model.Job
	ch           *stream.Channel
	lastActivity time.Time
}

func New(mode ModeFunc, opts Options, logger *zerolog.Logger) *Registry {
	if opts.MaxPromptLen <= 0 {
		opts.MaxPromptLen = 4000
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	l := logger.With().Str("component", "JobRegistry").Logger()
	return &Registry{
		entries: make(map[string]*entry),
		mode:    mode,
		opts:    opts,
		log:     &l,
	}
}

// Create allocates a fresh job with a new identifier and its event
// channel. The prompt must be non-empty and within the configured
// maximum length. Credentials are only consulted for the mode
// decision; they are never stored.
func (r *Registry) Create(ctx context.Context, prompt, userID, lessonID string, creds model.Credentials) (*model.Job, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if len(prompt) > r.opts.MaxPromptLen {
		return nil, domain.ErrPromptTooLong
	}

	now := time.Now()
	job := &model.Job{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		UserID:    userID,
		LessonID:  lessonID,
		Mode:      r.mode(creds),
		Status:    model.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.entries[job.ID] = &entry{
		job:          job,
		ch:           stream.NewChannel(r.opts.ChannelBuffer),
		lastActivity: now,
	}
	r.created++
	r.mu.Unlock()

	metrics.IncJobCreated(string(job.Mode))
	snapshot := *job
	return &snapshot, nil
}

// Get returns a snapshot of the job, or domain.ErrNotFound when the
// identifier is unknown or the job has been evicted.
func (r *Registry) Get(ctx context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	snapshot := *e.job
	return &snapshot, nil
}

// Channel returns the job's event channel.
func (r *Registry) Channel(id string) (*stream.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.ch, nil
}

// MarkRunning transitions pending -> running.
func (r *Registry) MarkRunning(ctx context.Context, id string) error {
	return r.transition(id, func(j *model.Job) bool {
		if j.Status != model.JobStatusPending {
			return false
		}
		j.Status = model.JobStatusRunning
		return true
	})
}

// MarkComplete transitions to the complete terminal status.
func (r *Registry) MarkComplete(ctx context.Context, id string) error {
	return r.transition(id, func(j *model.Job) bool {
		j.Status = model.JobStatusComplete
		r.completed++
		return true
	})
}

// MarkFailed transitions to the failed terminal status and records
// the human-readable reason.
func (r *Registry) MarkFailed(ctx context.Context, id, reason string) error {
	return r.transition(id, func(j *model.Job) bool {
		j.Status = model.JobStatusFailed
		j.FailReason = reason
		r.failed++
		return true
	})
}

// transition applies fn under lock. A transition attempted on an
// already-terminal job is a warn-level no-op: duplicate terminal calls
// must never corrupt state.
func (r *Registry) transition(id string, fn func(*model.Job) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	if e.job.Status.Terminal() {
		r.log.Warn().Str("job_id", id).Str("status", string(e.job.Status)).
			Msg("ignoring status transition on terminal job")
		return domain.ErrTerminalJob
	}
	if !fn(e.job) {
		r.log.Warn().Str("job_id", id).Str("status", string(e.job.Status)).
			Msg("ignoring invalid status transition")
		return nil
	}
	now := time.Now()
	e.job.UpdatedAt = now
	e.lastActivity = now
	if e.job.Status.Terminal() {
		metrics.IncJobFinished(string(e.job.Status), string(e.job.Mode))
	}
	return nil
}

// EvictExpired removes terminal jobs idle past the configured window
// that have no attached subscriber, closing their channels. Pending
// and running jobs are never touched: an engine run delayed past the
// TTL by a backlogged pool must still find its channel. Called by the
// background sweep, never by request handlers. Returns the count
// removed.
func (r *Registry) EvictExpired(ctx context.Context, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.entries {
		if !e.job.Status.Terminal() {
			continue
		}
		if now.Sub(e.lastActivity) < r.opts.IdleTTL {
			continue
		}
		if e.ch.Active() {
			continue
		}
		e.ch.Close()
		delete(r.entries, id)
		n++
		r.log.Debug().Str("job_id", id).Str("status", string(e.job.Status)).
			Msg("evicted idle job")
	}
	if n > 0 {
		metrics.AddJobsEvicted(n)
	}
	return n
}

// Count returns the number of live (not yet evicted) jobs.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats is the registry view served by the admin stats endpoint.
type Stats struct {
	Active    int            `json:"active"`
	ByStatus  map[string]int `json:"by_status"`
	ByMode    map[string]int `json:"by_mode"`
	Created   int64          `json:"created_total"`
	Completed int64          `json:"completed_total"`
	Failed    int64          `json:"failed_total"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{
		Active:    len(r.entries),
		ByStatus:  make(map[string]int),
		ByMode:    make(map[string]int),
		Created:   r.created,
		Completed: r.completed,
		Failed:    r.failed,
	}
	for _, e := range r.entries {
		s.ByStatus[string(e.job.Status)]++
		s.ByMode[string(e.job.Mode)]++
	}
	return s
}
