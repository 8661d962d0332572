package engine

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/osvaldoandrade/agentq/internal/planner"
	"github.com/osvaldoandrade/agentq/internal/stream"
	"github.com/osvaldoandrade/agentq/pkg/domain"
	"github.com/osvaldoandrade/agentq/pkg/store"
	"github.com/osvaldoandrade/agentq/pkg/store/memory"
)

func setupEngineTest(t *testing.T) (context.Context, store.JobStore, *Engine) {
	t.Helper()
	st, err := memory.NewPlugin(store.PluginConfig{})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	rng := rand.New(rand.NewSource(42))
	noSleep := func(ctx context.Context, d time.Duration) {}
	eng := NewEngine(st, planner.Plan, nil, now, rng, noSleep, 0, 0, 0)
	return context.Background(), st, eng
}

func newPendingJob(t *testing.T, ctx context.Context, st store.JobStore, id, request string) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:        id,
		Status:    domain.JobPending,
		Request:   request,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := st.Create(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func countNames(names []string, want string) int {
	n := 0
	for _, name := range names {
		if name == want {
			n++
		}
	}
	return n
}

func TestExecuteSuccessSequence(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize this article")
	rec := stream.NewRecorder()

	if err := eng.Execute(ctx, job, 0, rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	names := rec.Names()
	if names[0] != domain.EventJobStart || names[1] != domain.EventPlan {
		t.Fatalf("stream must open with job-start, plan; got %v", names[:2])
	}
	if names[len(names)-1] != domain.EventJobComplete {
		t.Fatalf("stream must close with job-complete; got %v", names)
	}
	if countNames(names, domain.EventJobComplete) != 1 {
		t.Errorf("expected exactly one job-complete: %v", names)
	}
	if countNames(names, domain.EventJobError) != 0 {
		t.Errorf("expected zero job-error events: %v", names)
	}
	if countNames(names, domain.EventAgentStart) != 5 || countNames(names, domain.EventAgentComplete) != 5 {
		t.Errorf("expected 5 agent-start and 5 agent-complete: %v", names)
	}
}

func TestExecuteFinalizesRegistryRecord(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize this article")

	if err := eng.Execute(ctx, job, 0, stream.NewRecorder()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, err := st.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != domain.JobCompleted {
		t.Fatalf("job status = %s, want COMPLETED", stored.Status)
	}
	if stored.Result == nil {
		t.Fatal("completed job must carry a result")
	}
	for _, run := range stored.Runs {
		if run.Status != domain.RunCompleted {
			t.Errorf("run %s status = %s, want COMPLETED", run.ID, run.Status)
		}
		if run.Progress != 100 {
			t.Errorf("run %s progress = %d, want 100", run.ID, run.Progress)
		}
		if run.Output == "" {
			t.Errorf("run %s has no output summary", run.ID)
		}
	}
}

func TestExecuteProgressMonotonic(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Build an API for quarterly financial reports")
	rec := stream.NewRecorder()

	if err := eng.Execute(ctx, job, 0, rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	perAgent := map[string][]int{}
	for _, e := range rec.Events() {
		if e.Name != domain.EventAgentProgress {
			continue
		}
		p := e.Data.(domain.AgentProgressPayload)
		perAgent[p.ID] = append(perAgent[p.ID], p.Progress)
	}
	if len(perAgent) != 7 {
		t.Fatalf("expected progress for 7 agents, got %d", len(perAgent))
	}
	for id, values := range perAgent {
		prev := 0
		for _, v := range values {
			if v <= prev || v > 100 {
				t.Errorf("agent %s: progress %v must strictly increase within (0,100]", id, values)
				break
			}
			prev = v
		}
		if values[len(values)-1] != 100 {
			t.Errorf("agent %s: last progress before completion = %d, want 100", id, values[len(values)-1])
		}
	}
}

func TestExecuteFailureStopsPipeline(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize this article")
	rec := stream.NewRecorder()

	if err := eng.Execute(ctx, job, 1, rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	names := rec.Names()
	if countNames(names, domain.EventJobError) != 1 {
		t.Fatalf("expected exactly one job-error: %v", names)
	}
	if countNames(names, domain.EventJobComplete) != 0 {
		t.Errorf("expected zero job-complete: %v", names)
	}
	if countNames(names, domain.EventAgentStart) != 1 {
		t.Errorf("with p=1 only the first agent may start: %v", names)
	}
	if countNames(names, domain.EventAgentComplete) != 0 {
		t.Errorf("no agent may complete with p=1: %v", names)
	}
	if names[len(names)-1] != domain.EventJobError {
		t.Errorf("job-error must be the final event: %v", names)
	}
	// First agent fails at its first step: no progress events at all.
	if countNames(names, domain.EventAgentProgress) != 0 {
		t.Errorf("expected zero progress events with p=1: %v", names)
	}

	stored, err := st.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != domain.JobError {
		t.Errorf("job status = %s, want ERROR", stored.Status)
	}
	if stored.Runs[0].Status != domain.RunFailed {
		t.Errorf("first run status = %s, want FAILED", stored.Runs[0].Status)
	}
	if stored.Runs[0].Progress != 0 {
		t.Errorf("failed run must freeze progress, got %d", stored.Runs[0].Progress)
	}
	for _, run := range stored.Runs[1:] {
		if run.Status != domain.RunPending {
			t.Errorf("run %s after the failure must stay PENDING, got %s", run.ID, run.Status)
		}
	}
}

func TestExecuteFailureEventIdentifiesAgent(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize this article")
	rec := stream.NewRecorder()

	if err := eng.Execute(ctx, job, 1, rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	events := rec.Events()
	last := events[len(events)-1]
	payload, ok := last.Data.(domain.JobErrorPayload)
	if !ok {
		t.Fatalf("job-error payload type %T", last.Data)
	}
	if payload.AgentID != "breakdown" {
		t.Errorf("failing agent = %q, want breakdown", payload.AgentID)
	}
	if payload.Message == "" {
		t.Error("job-error must carry a message")
	}
}

func TestExecuteSummaryOnePerAgentInPlanOrder(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize last three quarters financial trends")
	rec := stream.NewRecorder()

	if err := eng.Execute(ctx, job, 0, rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, err := st.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Runs[0].ID != "finance" {
		t.Fatalf("finance stage must run first, got %s", stored.Runs[0].ID)
	}

	lines := splitLines(stored.Result.Summary)
	if len(lines) != len(stored.Runs) {
		t.Fatalf("summary has %d lines, want one per agent (%d)", len(lines), len(stored.Runs))
	}
	for i, run := range stored.Runs {
		if lines[i] != run.Output {
			t.Errorf("summary line %d = %q, want %q", i, lines[i], run.Output)
		}
	}
}

func TestExecuteResultArtifacts(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize this article")

	if err := eng.Execute(ctx, job, 0, stream.NewRecorder()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := st.Get(ctx, "job-1")
	arts := stored.Result.Artifacts
	if len(arts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(arts))
	}
	if arts[0].Type != domain.ArtifactChart || arts[0].Ref == "" {
		t.Errorf("first artifact must be a chart with a ref: %+v", arts[0])
	}
	if arts[1].Type != domain.ArtifactTable || len(arts[1].Rows) != len(stored.Runs) {
		t.Errorf("second artifact must be a table with one row per run: %+v", arts[1])
	}
}

func TestResultTitleTruncatesOnRuneBoundary(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	request := strings.Repeat("é", 80)
	job := newPendingJob(t, ctx, st, "job-1", request)

	if err := eng.Execute(ctx, job, 0, stream.NewRecorder()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	stored, _ := st.Get(ctx, "job-1")
	title := stored.Result.Title
	if !utf8.ValidString(title) {
		t.Fatalf("title is not valid UTF-8: %q", title)
	}
	want := "Report: " + strings.Repeat("é", 60)
	if title != want {
		t.Errorf("title = %q, want %q", title, want)
	}
}

func TestExecuteClampsFailureRate(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize this article")
	rec := stream.NewRecorder()

	// Below zero clamps to 0: the run must succeed.
	if err := eng.Execute(ctx, job, -3, rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if countNames(rec.Names(), domain.EventJobComplete) != 1 {
		t.Errorf("negative failure rate must behave as 0: %v", rec.Names())
	}
}

func TestExecuteRecoversPanicAsJobError(t *testing.T) {
	ctx, st, _ := setupEngineTest(t)
	job := newPendingJob(t, ctx, st, "job-1", "Summarize this article")
	rec := stream.NewRecorder()

	boom := func(request string) []domain.AgentSpec { panic("planner exploded") }
	now := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng := NewEngine(st, boom, nil, now, rand.New(rand.NewSource(1)), func(context.Context, time.Duration) {}, 0, 0, 0)

	if err := eng.Execute(ctx, job, 0, rec); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	names := rec.Names()
	if names[len(names)-1] != domain.EventJobError {
		t.Fatalf("panic must surface as a final job-error: %v", names)
	}
	stored, _ := st.Get(ctx, "job-1")
	if stored.Status != domain.JobError {
		t.Errorf("job status = %s, want ERROR", stored.Status)
	}
}

func TestConcurrentJobsIsolated(t *testing.T) {
	ctx, st, eng := setupEngineTest(t)
	jobA := newPendingJob(t, ctx, st, "job-a", "Summarize this article")
	jobB := newPendingJob(t, ctx, st, "job-b", "Draft API integration plan")

	recA := stream.NewRecorder()
	recB := stream.NewRecorder()
	done := make(chan error, 2)
	go func() { done <- eng.Execute(ctx, jobA, 0, recA) }()
	go func() { done <- eng.Execute(ctx, jobB, 0, recB) }()
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	if countNames(recA.Names(), domain.EventAgentStart) != 5 {
		t.Errorf("job-a expected 5 agents: %v", recA.Names())
	}
	if countNames(recB.Names(), domain.EventAgentStart) != 6 {
		t.Errorf("job-b expected 6 agents (implementation stage): %v", recB.Names())
	}
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}
