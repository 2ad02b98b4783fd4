package workflow

import (
	"context"
	"fmt"
	"strings"
)

// Compile-time assurance the executor satisfies the capability.
var _ StageExecutor = (*DemoExecutor)(nil)

// DemoExecutor synthesizes a deterministic educational workflow from
// the prompt alone. It never performs external calls, so demo jobs can
// never fail on provider availability; every detail string is a pure
// function of the prompt and a fixed per-stage template.
type DemoExecutor struct{}

func NewDemoExecutor() *DemoExecutor { return &DemoExecutor{} }

func (d *DemoExecutor) Route(ctx context.Context, prompt string) (string, error) {
	return "Query received and routed to GRID", nil
}

func (d *DemoExecutor) Classify(ctx context.Context, prompt string) (string, string, error) {
	wtype := classifyKeywords(prompt)
	return wtype, fmt.Sprintf("Classified as %s workflow", wtype), nil
}

func (d *DemoExecutor) Plan(ctx context.Context, prompt, workflowType string) ([]Task, string, error) {
	names := demoPlans[workflowType]
	if len(names) == 0 {
		names = demoPlans["general_query"]
	}
	tasks := make([]Task, 0, len(names))
	for _, n := range names {
		tasks = append(tasks, Task{Agent: titleCase(n) + " Agent", Description: n})
	}
	detail := fmt.Sprintf("Decomposed into %d tasks: %s", len(names), strings.Join(names, ", "))
	return tasks, detail, nil
}

func (d *DemoExecutor) ExecuteTask(ctx context.Context, prompt string, idx int, task *Task, emit ProgressFunc) error {
	const steps = 3
	for step := 1; step <= steps; step++ {
		pct := step * 100 / steps
		emit(fmt.Sprintf("Processing %s: %d%% complete", task.Description, pct), pct)
	}
	task.Result = task.Description + " completed"
	return nil
}

func (d *DemoExecutor) Compose(ctx context.Context, prompt string, tasks []Task) (string, error) {
	results := make([]string, 0, len(tasks))
	for _, t := range tasks {
		results = append(results, t.Result)
	}
	return fmt.Sprintf(
		"This demonstration showed how the Sentient GRID routes your query '%s' "+
			"through multiple specialized agents. The workflow involved: %s. "+
			"Each agent worked in parallel to process different aspects of your request, "+
			"and their results were composed into this unified answer. "+
			"This multi-agent approach enables AGI-level intelligence by combining "+
			"specialized expertise rather than relying on a single monolithic model.",
		truncate(prompt, 100), strings.Join(results, ", ")), nil
}

// demoPlans maps workflow type to its fixed task list.
var demoPlans = map[string][]string{
	"summarization":   {"research", "extract", "summarize"},
	"explanation":     {"research", "analyze", "explain"},
	"code_generation": {"plan", "generate", "validate"},
	"research":        {"search", "filter", "synthesize"},
	"general_query":   {"analyze", "process", "respond"},
}

// classifyKeywords buckets a prompt by the same keyword tables the
// live router prompt describes.
func classifyKeywords(prompt string) string {
	p := strings.ToLower(prompt)
	switch {
	case containsAny(p, "explain", "what is", "how does", "define"):
		return "explanation"
	case containsAny(p, "summarize", "summary", "headlines"):
		return "summarization"
	case containsAny(p, "research", "find", "search", "look up"):
		return "research"
	case containsAny(p, "code", "program", "implement"):
		return "code_generation"
	default:
		return "general_query"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
