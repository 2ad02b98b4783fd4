package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/domain/ports/adapter"
	"grid-agent-service/internal/domain/ports/repository"
	"grid-agent-service/internal/infra/metrics"
)

var _ StageExecutor = (*LiveExecutor)(nil)

// LiveExecutor drives the workflow with real LLM calls through an
// AIServiceAdapter. The router model classifies, plans and composes;
// the cheaper worker model executes individual tasks. Provider errors
// are returned as-is: the engine owns the conversion to a terminal
// failure, this executor never papers over an unreachable provider.
type LiveExecutor struct {
	ai          adapter.AIServiceAdapter
	routerModel string
	workerModel string
	usage       repository.UsageLogRepository
	jobID       string
	userID      string
	log         *zerolog.Logger
}

func NewLiveExecutor(
	ai adapter.AIServiceAdapter,
	routerModel, workerModel string,
	usage repository.UsageLogRepository,
	job *model.Job,
	logger *zerolog.Logger,
) *LiveExecutor {
	userID := job.UserID
	if userID == "" {
		userID = "local"
	}
	l := logger.With().Str("component", "LiveExecutor").Str("job_id", job.ID).Logger()
	return &LiveExecutor{
		ai:          ai,
		routerModel: routerModel,
		workerModel: workerModel,
		usage:       usage,
		jobID:       job.ID,
		userID:      userID,
		log:         &l,
	}
}

func (l *LiveExecutor) Route(ctx context.Context, prompt string) (string, error) {
	return fmt.Sprintf("Query routed to GRID using %s", l.routerModel), nil
}

func (l *LiveExecutor) Classify(ctx context.Context, prompt string) (string, string, error) {
	content, err := l.chat(ctx, l.routerModel, []adapter.Message{
		{Role: "system", Content: "You are a query classifier for the Sentient GRID. " +
			"Classify the user's query into ONE category: explanation, summarization, " +
			"research, code_generation, or general_query. Respond with JSON: " +
			`{"category": "...", "reasoning": "brief explanation"}`},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", "", fmt.Errorf("classification failed: %w", err)
	}

	lower := strings.ToLower(content)
	var wtype, reasoning string
	switch {
	case strings.Contains(lower, "explanation"):
		wtype, reasoning = "explanation", "Query seeks to understand a concept"
	case strings.Contains(lower, "summarization"):
		wtype, reasoning = "summarization", "Query requests a summary"
	case strings.Contains(lower, "research"):
		wtype, reasoning = "research", "Query requires information gathering"
	case strings.Contains(lower, "code"):
		wtype, reasoning = "code_generation", "Query involves coding"
	default:
		wtype, reasoning = "general_query", "General information request"
	}
	return wtype, fmt.Sprintf("Classified as '%s' - %s", wtype, reasoning), nil
}

func (l *LiveExecutor) Plan(ctx context.Context, prompt, workflowType string) ([]Task, string, error) {
	content, err := l.chat(ctx, l.routerModel, []adapter.Message{
		{Role: "system", Content: "You are a workflow planner for the Sentient GRID. " +
			"Break down the user's query into 2-4 specific subtasks that different " +
			"specialized agents should handle. Each task should have an agent type and description."},
		{Role: "user", Content: fmt.Sprintf(
			"Query type: %s\nQuery: %s\n\nProvide 2-4 subtasks as a simple list, "+
				"one per line, format: 'AgentName: description'", workflowType, prompt)},
	})
	if err != nil {
		return nil, "", fmt.Errorf("planning failed: %w", err)
	}

	tasks := parsePlan(content)
	if len(tasks) == 0 {
		// The model answered but not in the requested shape; fall
		// back to a sane default plan rather than failing the job.
		tasks = []Task{
			{Agent: "Research Agent", Description: "Gather relevant information"},
			{Agent: "Analysis Agent", Description: "Process and analyze data"},
			{Agent: "Synthesis Agent", Description: "Formulate comprehensive answer"},
		}
	}
	return tasks, fmt.Sprintf("Decomposed into %d specialized tasks", len(tasks)), nil
}

func (l *LiveExecutor) ExecuteTask(ctx context.Context, prompt string, idx int, task *Task, emit ProgressFunc) error {
	emit(fmt.Sprintf("%s: Processing with %s...", task.Agent, l.workerModel), 30)

	reply, err := l.chat(ctx, l.workerModel, []adapter.Message{
		{Role: "system", Content: fmt.Sprintf(
			"You are the %s in a multi-agent system. Your specific role: %s. "+
				"Provide a focused, concise result for your assigned subtask.",
			task.Agent, task.Description)},
		{Role: "user", Content: fmt.Sprintf(
			"Original user query: %s\n\nYour subtask: %s\n\nProvide your specialized result.",
			prompt, task.Description)},
	})
	if err != nil {
		return fmt.Errorf("%s failed: %w", task.Agent, err)
	}

	task.Result = reply
	emit(fmt.Sprintf("%s: Complete", task.Agent), 100)
	return nil
}

func (l *LiveExecutor) Compose(ctx context.Context, prompt string, tasks []Task) (string, error) {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		result := t.Result
		if result == "" {
			result = t.Description
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Agent, result))
	}

	answer, err := l.chat(ctx, l.routerModel, []adapter.Message{
		{Role: "system", Content: "You are the final synthesis agent in the Sentient GRID. " +
			"Compose a comprehensive, helpful answer based on the workflow that was executed. " +
			"Be informative and educational."},
		{Role: "user", Content: fmt.Sprintf(
			"User asked: %s\n\nOur multi-agent workflow executed:\n%s\n\n"+
				"Provide a clear, comprehensive answer to the user's question.",
			prompt, strings.Join(lines, "\n"))},
	})
	if err != nil {
		return "", fmt.Errorf("composition failed: %w", err)
	}
	return answer, nil
}

// chat performs one completion and records usage and metrics for it.
func (l *LiveExecutor) chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	promptEstimate, cErr := l.ai.CountTokens(ctx, model, messages)
	if cErr != nil {
		l.log.Debug().Err(cErr).Str("model", model).Msg("token pre-count failed")
		promptEstimate = 0
	}

	start := time.Now()
	reply, usage, err := l.ai.ChatWithUsage(ctx, model, messages)
	latencyMs := int(time.Since(start) / time.Millisecond)

	if err != nil {
		metrics.ObserveAICall(l.ai.Provider(), model, 0, 0, 0, 0, latencyMs, false)
		return "", err
	}

	if usage.TotalTokens == 0 {
		// Some gateways omit usage counts; fall back to the local
		// estimate so accounting never records a free call.
		usage.PromptTokens = promptEstimate
		usage.CompletionTokens = len(reply) / 4
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	cost := estimateCost(model, usage.PromptTokens, usage.CompletionTokens)
	metrics.ObserveAICall(l.ai.Provider(), model,
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens,
		int64(cost*1_000_000), latencyMs, true)
	l.track(ctx, model, usage, cost)
	return reply, nil
}

// track persists the usage record. Accounting failures are logged and
// swallowed: billing bookkeeping must never fail a running workflow.
func (l *LiveExecutor) track(ctx context.Context, modelName string, usage adapter.Usage, cost float64) {
	rec := &model.APIUsage{
		UserID:        l.userID,
		JobID:         l.jobID,
		Provider:      l.ai.Provider(),
		Model:         modelName,
		TokensUsed:    usage.TotalTokens,
		EstimatedCost: cost,
		CreatedAt:     time.Now(),
	}
	if err := l.usage.Save(ctx, rec); err != nil {
		l.log.Error().Err(err).Str("model", modelName).Msg("failed to track usage")
		return
	}
	l.log.Info().Str("model", modelName).Int("tokens", usage.TotalTokens).
		Float64("cost", cost).Msg("usage tracked")
}

// parsePlan extracts "AgentName: description" lines, tolerating
// markdown bullets and numbering, capped at four tasks.
func parsePlan(content string) []Task {
	var tasks []Task
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		i := strings.Index(line, ":")
		if i <= 0 {
			continue
		}
		agent := strings.Trim(line[:i], "-*# 0123456789.")
		desc := strings.TrimSpace(line[i+1:])
		if agent == "" || desc == "" {
			continue
		}
		tasks = append(tasks, Task{Agent: strings.TrimSpace(agent), Description: desc})
		if len(tasks) == 4 {
			break
		}
	}
	return tasks
}
