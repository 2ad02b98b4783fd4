package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/domain/ports/adapter"
)

// fakeAI scripts ChatWithUsage responses per call.
type fakeAI struct {
	mu          sync.Mutex
	replies     []string
	err         error
	calls       [][]adapter.Message
	models      []string
	countTokens int
	noUsage     bool
}

func (f *fakeAI) Provider() string { return "fake" }

func (f *fakeAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return f.countTokens, nil
}

func (f *fakeAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	f.models = append(f.models, model)
	if f.err != nil {
		return "", adapter.Usage{}, f.err
	}
	reply := "ok"
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	if f.noUsage {
		return reply, adapter.Usage{}, nil
	}
	return reply, adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

// memUsage records saved usage rows.
type memUsage struct {
	mu   sync.Mutex
	recs []model.APIUsage
}

func (m *memUsage) Save(ctx context.Context, rec *model.APIUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *memUsage) Totals(ctx context.Context, userID string) (model.UsageTotals, error) {
	return model.UsageTotals{}, nil
}

func (m *memUsage) ByProvider(ctx context.Context, userID string) ([]model.ProviderUsage, error) {
	return nil, nil
}

func newLiveExecutorForTest(ai adapter.AIServiceAdapter, usage *memUsage) *LiveExecutor {
	log := zerolog.Nop()
	job := &model.Job{ID: "job-1", UserID: "", Mode: model.ModeLive}
	return NewLiveExecutor(ai, "router-model", "worker-model", usage, job, &log)
}

func TestLiveExecutor_ClassifyMapsCategory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		reply string
		want  string
	}{
		{`{"category": "explanation", "reasoning": "seeks understanding"}`, "explanation"},
		{`{"category": "summarization"}`, "summarization"},
		{`the query needs research`, "research"},
		{`{"category": "code_generation"}`, "code_generation"},
		{`no idea`, "general_query"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			ai := &fakeAI{replies: []string{tc.reply}}
			ex := newLiveExecutorForTest(ai, &memUsage{})

			wtype, detail, err := ex.Classify(context.Background(), "a question")
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if wtype != tc.want {
				t.Fatalf("got %q, want %q", wtype, tc.want)
			}
			if !strings.Contains(detail, tc.want) {
				t.Fatalf("detail %q must name the type", detail)
			}
			if ai.models[0] != "router-model" {
				t.Fatalf("classification must use the router model, got %s", ai.models[0])
			}
		})
	}
}

func TestLiveExecutor_ProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{err: errors.New("429 too many requests")}
	ex := newLiveExecutorForTest(ai, &memUsage{})

	if _, _, err := ex.Classify(context.Background(), "q"); err == nil {
		t.Fatalf("expected classify to fail")
	}
	if _, _, err := ex.Plan(context.Background(), "q", "research"); err == nil {
		t.Fatalf("expected plan to fail")
	}
	task := Task{Agent: "Research Agent", Description: "look things up"}
	if err := ex.ExecuteTask(context.Background(), "q", 0, &task, func(string, int) {}); err == nil {
		t.Fatalf("expected task to fail")
	}
	if _, err := ex.Compose(context.Background(), "q", []Task{task}); err == nil {
		t.Fatalf("expected compose to fail")
	}
}

func TestLiveExecutor_PlanFallsBackOnUnparseableReply(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{replies: []string{"I cannot split this into tasks, sorry"}}
	ex := newLiveExecutorForTest(ai, &memUsage{})

	tasks, detail, err := ex.Plan(context.Background(), "q", "general_query")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("fallback plan must have 3 tasks, got %d", len(tasks))
	}
	if !strings.Contains(detail, "3") {
		t.Fatalf("detail %q must report the task count", detail)
	}
}

func TestLiveExecutor_ExecuteTaskUsesWorkerModel(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{replies: []string{"research findings"}}
	ex := newLiveExecutorForTest(ai, &memUsage{})

	var updates []int
	task := Task{Agent: "Research Agent", Description: "gather info"}
	err := ex.ExecuteTask(context.Background(), "q", 0, &task, func(_ string, pct int) {
		updates = append(updates, pct)
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if task.Result != "research findings" {
		t.Fatalf("task result %q", task.Result)
	}
	if ai.models[0] != "worker-model" {
		t.Fatalf("tasks must use the worker model, got %s", ai.models[0])
	}
	if len(updates) != 2 || updates[len(updates)-1] != 100 {
		t.Fatalf("progress updates %v", updates)
	}
}

func TestLiveExecutor_TracksUsage(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{replies: []string{`{"category": "research"}`}}
	usage := &memUsage{}
	ex := newLiveExecutorForTest(ai, usage)

	if _, _, err := ex.Classify(context.Background(), "q"); err != nil {
		t.Fatalf("classify: %v", err)
	}

	usage.mu.Lock()
	defer usage.mu.Unlock()
	if len(usage.recs) != 1 {
		t.Fatalf("expected one usage record, got %d", len(usage.recs))
	}
	rec := usage.recs[0]
	if rec.JobID != "job-1" || rec.Provider != "fake" {
		t.Fatalf("record %+v", rec)
	}
	if rec.UserID != "local" {
		t.Fatalf("empty user must default to local, got %q", rec.UserID)
	}
	if rec.TokensUsed != 15 {
		t.Fatalf("tokens %d, want 15", rec.TokensUsed)
	}
}

func TestLiveExecutor_EstimatesUsageWhenProviderOmitsIt(t *testing.T) {
	t.Parallel()

	reply := `{"category": "research"}`
	ai := &fakeAI{replies: []string{reply}, noUsage: true, countTokens: 42}
	usage := &memUsage{}
	ex := newLiveExecutorForTest(ai, usage)

	if _, _, err := ex.Classify(context.Background(), "q"); err != nil {
		t.Fatalf("classify: %v", err)
	}

	usage.mu.Lock()
	defer usage.mu.Unlock()
	if len(usage.recs) != 1 {
		t.Fatalf("expected one usage record, got %d", len(usage.recs))
	}
	want := 42 + len(reply)/4
	if got := usage.recs[0].TokensUsed; got != want {
		t.Fatalf("tokens %d, want estimate %d", got, want)
	}
}

func TestParsePlan(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"plain", "Research Agent: find sources\nAnalysis Agent: crunch numbers", 2},
		{"bullets", "- Research Agent: find sources\n* Writer Agent: draft text", 2},
		{"numbered", "1. Research Agent: find sources\n2. Analysis Agent: crunch", 2},
		{"capped at four", "A: a\nB: b\nC: c\nD: d\nE: e", 4},
		{"skips malformed", "no colon here\n: empty agent\nAgent:\nGood Agent: fine", 1},
		{"empty", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parsePlan(tc.content)
			if len(got) != tc.want {
				t.Fatalf("got %d tasks %v, want %d", len(got), got, tc.want)
			}
		})
	}

	tasks := parsePlan("2. Research Agent: find good sources")
	if tasks[0].Agent != "Research Agent" || tasks[0].Description != "find good sources" {
		t.Fatalf("parsed %+v", tasks[0])
	}
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	// 1M prompt + 1M completion tokens makes the table values legible.
	cases := []struct {
		model string
		want  float64
	}{
		{"gpt-4o-mini", 0.75},
		{"gpt-4o", 12.50},
		{"claude-3-5-sonnet-20241022", 18.00},
		{"claude-3-5-haiku-20241022", 4.80},
		{"accounts/fireworks/models/dobby-unhinged-llama-3-3-70b-new", 2.00},
		{"gemini-2.0-flash-lite", 0.375},
		{"gemini-2.0-flash", 0.50},
		{"unknown-model", 0},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			got := estimateCost(tc.model, 1_000_000, 1_000_000)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
