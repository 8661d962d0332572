package planner

import (
	"slices"
	"strings"

	"github.com/osvaldoandrade/agentq/pkg/domain"
)

// PlanFunc is the contract the engine consumes. Plan satisfies it; tests may
// substitute a fixed plan.
type PlanFunc func(request string) []domain.AgentSpec

// Baseline pipeline, always present and always in this relative order.
func baseline() []domain.AgentSpec {
	return []domain.AgentSpec{
		{ID: "breakdown", Name: "Task Breakdown", Role: "Decomposes the request into workable sub-tasks", Steps: 3},
		{ID: "research", Name: "Research", Role: "Collects background material for each sub-task", Steps: 4},
		{ID: "analysis", Name: "Analysis", Role: "Evaluates findings and extracts conclusions", Steps: 4},
		{ID: "visualization", Name: "Visualization", Role: "Prepares charts and tables from the analysis", Steps: 3},
		{ID: "composition", Name: "Composition", Role: "Assembles the final deliverable", Steps: 3},
	}
}

var implementationKeywords = []string{"code", "api", "implement", "develop", "integration"}

var financeKeywords = []string{"financial", "quarter", "revenue", "budget"}

// Plan maps request text to an ordered list of agent specs. Pure and
// deterministic; it never fails and always returns at least the baseline.
//
// Keyword rules are independent and may both fire. The finance stage goes to
// the very front; the implementation stage goes after the second baseline
// stage, with the position taken against the original baseline indices, never
// recomputed against a front-inserted stage.
func Plan(request string) []domain.AgentSpec {
	lowered := strings.ToLower(request)
	plan := baseline()

	offset := 0
	if containsAny(lowered, financeKeywords) {
		plan = slices.Insert(plan, 0, domain.AgentSpec{
			ID:    "finance",
			Name:  "Financial Scan",
			Role:  "Surveys financial figures relevant to the request",
			Steps: 3,
		})
		offset = 1
	}
	if containsAny(lowered, implementationKeywords) {
		plan = slices.Insert(plan, offset+2, domain.AgentSpec{
			ID:    "implementation",
			Name:  "Implementation Outline",
			Role:  "Drafts the technical implementation approach",
			Steps: 5,
		})
	}
	return plan
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
