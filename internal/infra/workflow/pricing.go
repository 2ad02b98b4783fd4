package workflow

import "strings"

// modelPricing is USD per 1M tokens, input/output. Matched by
// substring so dated model ids ("claude-3-5-haiku-20241022") resolve.
// Order matters: more specific ids first.
type modelPricing struct {
	match  string
	input  float64
	output float64
}

var pricingTable = []modelPricing{
	{"gpt-4o-mini", 0.15, 0.60},
	{"gpt-4o", 2.50, 10.00},
	{"claude-3-5-sonnet", 3.00, 15.00},
	{"claude-3-5-haiku", 0.80, 4.00},
	{"dobby", 1.00, 1.00},
	{"gemini-2.0-flash-lite", 0.075, 0.30},
	{"gemini-2.0-flash", 0.10, 0.40},
}

// estimateCost returns the estimated USD cost of one call; zero for
// unknown models.
func estimateCost(model string, promptTokens, completionTokens int) float64 {
	m := strings.ToLower(model)
	for _, p := range pricingTable {
		if strings.Contains(m, p.match) {
			return float64(promptTokens)*p.input/1_000_000 +
				float64(completionTokens)*p.output/1_000_000
		}
	}
	return 0
}
