package planner

import (
	"testing"

	"github.com/osvaldoandrade/agentq/pkg/domain"
)

var baselineIDs = []string{"breakdown", "research", "analysis", "visualization", "composition"}

func ids(plan []domain.AgentSpec) []string {
	out := make([]string, len(plan))
	for i, spec := range plan {
		out[i] = spec.ID
	}
	return out
}

func indexOf(plan []domain.AgentSpec, id string) int {
	for i, spec := range plan {
		if spec.ID == id {
			return i
		}
	}
	return -1
}

func assertBaselineOrder(t *testing.T, plan []domain.AgentSpec) {
	t.Helper()
	last := -1
	for _, id := range baselineIDs {
		idx := indexOf(plan, id)
		if idx < 0 {
			t.Fatalf("baseline stage %q missing from plan %v", id, ids(plan))
		}
		if idx <= last {
			t.Fatalf("baseline stage %q out of order in plan %v", id, ids(plan))
		}
		last = idx
	}
}

func TestPlanBaseline(t *testing.T) {
	for _, request := range []string{
		"",
		"Summarize this article",
		"Plan my vacation",
	} {
		plan := Plan(request)
		if len(plan) != 5 {
			t.Errorf("Plan(%q) = %v, want 5 baseline stages", request, ids(plan))
		}
		assertBaselineOrder(t, plan)
	}
}

func TestPlanDeterministic(t *testing.T) {
	a := Plan("Draft API integration plan")
	b := Plan("Draft API integration plan")
	if len(a) != len(b) {
		t.Fatalf("non-deterministic plan length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("plan differs at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPlanImplementationKeyword(t *testing.T) {
	for _, request := range []string{
		"Draft API integration plan",
		"Write CODE for the parser",
		"implement the importer",
	} {
		plan := Plan(request)
		assertBaselineOrder(t, plan)
		idx := indexOf(plan, "implementation")
		if idx < 0 {
			t.Fatalf("Plan(%q) missing implementation stage: %v", request, ids(plan))
		}
		if idx <= indexOf(plan, "research") || idx >= indexOf(plan, "analysis") {
			t.Errorf("Plan(%q): implementation stage must sit between research and analysis, got %v", request, ids(plan))
		}
	}
}

func TestPlanFinanceKeyword(t *testing.T) {
	for _, request := range []string{
		"Summarize last three quarters financial trends",
		"What happened to revenue this Quarter?",
	} {
		plan := Plan(request)
		assertBaselineOrder(t, plan)
		if plan[0].ID != "finance" {
			t.Errorf("Plan(%q): finance stage must be first, got %v", request, ids(plan))
		}
	}
}

func TestPlanBothKeywords(t *testing.T) {
	plan := Plan("Build an API for quarterly financial reports")
	assertBaselineOrder(t, plan)

	if plan[0].ID != "finance" {
		t.Fatalf("finance stage must be first, got %v", ids(plan))
	}
	// Interior insertion is computed against the original baseline: the
	// implementation stage still lands right after research.
	implIdx := indexOf(plan, "implementation")
	if implIdx != indexOf(plan, "research")+1 {
		t.Errorf("implementation stage must directly follow research, got %v", ids(plan))
	}
	if len(plan) != 7 {
		t.Errorf("expected 7 stages with both rules firing, got %v", ids(plan))
	}
}

func TestPlanStepsPositive(t *testing.T) {
	plan := Plan("Build an API for quarterly financial budget code review")
	for _, spec := range plan {
		if spec.Steps < 1 {
			t.Errorf("stage %q has non-positive step count %d", spec.ID, spec.Steps)
		}
	}
}
