// Package engine drives one job through its planned agents, emitting a
// strictly ordered event sequence to a single sink and finalizing the job
// registry record. Execution is sequential on purpose: agents declare no
// dependencies, so ordering is plan order. A dependency-aware scheduler is a
// future extension point, not a present behavior.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/osvaldoandrade/agentq/internal/metrics"
	"github.com/osvaldoandrade/agentq/internal/planner"
	"github.com/osvaldoandrade/agentq/internal/stream"
	"github.com/osvaldoandrade/agentq/pkg/domain"
	"github.com/osvaldoandrade/agentq/pkg/store"
)

// Engine executes jobs. One Execute call is the single writer for its job;
// distinct jobs may execute concurrently and share nothing but the store's
// key space and the engine's guarded rng.
type Engine struct {
	store              store.JobStore
	plan               planner.PlanFunc
	logger             *slog.Logger
	now                func() time.Time
	sleep              func(ctx context.Context, d time.Duration)
	stepDelayMin       time.Duration
	stepDelayMax       time.Duration
	defaultFailureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(st store.JobStore, plan planner.PlanFunc, logger *slog.Logger, now func() time.Time, rng *rand.Rand, sleep func(ctx context.Context, d time.Duration), stepDelayMin, stepDelayMax time.Duration, defaultFailureRate float64) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) {
			if d <= 0 {
				return
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		}
	}
	if stepDelayMax < stepDelayMin {
		stepDelayMax = stepDelayMin
	}
	return &Engine{
		store:              st,
		plan:               plan,
		logger:             logger,
		now:                now,
		rng:                rng,
		sleep:              sleep,
		stepDelayMin:       stepDelayMin,
		stepDelayMax:       stepDelayMax,
		defaultFailureRate: clamp01(defaultFailureRate),
	}
}

// DefaultFailureRate is the rate applied when the stream request carries no
// override.
func (e *Engine) DefaultFailureRate() float64 {
	return e.defaultFailureRate
}

// Execute runs a pending job to a terminal state, writing every event to
// sink. The caller hands over its own copy of the job record; no other logic
// may mutate it while Execute runs. Sink errors are logged, not fatal: a
// subscriber hanging up does not interrupt the simulated execution.
func (e *Engine) Execute(ctx context.Context, job *domain.Job, failureRate float64, sink stream.Sink) error {
	p := clamp01(failureRate)

	metrics.JobStartedTotal.Inc()
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()
	started := e.now()

	terminal := false
	defer func() {
		// An unexpected fault inside the run loop must surface as a generic
		// job-error instead of crashing the stream.
		if r := recover(); r != nil && !terminal {
			e.logger.Error("job execution panic", "jobId", job.ID, "panic", fmt.Sprint(r))
			job.Status = domain.JobError
			job.Error = "internal execution error"
			if err := e.store.Update(ctx, job); err != nil {
				e.logger.Error("finalize job after panic", "jobId", job.ID, "error", err)
			}
			e.emit(job.ID, sink, domain.EventJobError, domain.JobErrorPayload{Message: "internal execution error"})
			e.finish(job, started)
		}
	}()

	job.Status = domain.JobRunning
	e.emit(job.ID, sink, domain.EventJobStart, domain.JobStartPayload{JobID: job.ID, CreatedAt: job.CreatedAt})

	specs := e.plan(job.Request)
	e.emit(job.ID, sink, domain.EventPlan, domain.PlanPayload{Agents: specs})

	job.Runs = make([]*domain.AgentRun, 0, len(specs))
	for _, spec := range specs {
		job.Runs = append(job.Runs, &domain.AgentRun{
			ID:     spec.ID,
			Name:   spec.Name,
			Role:   spec.Role,
			Steps:  spec.Steps,
			Status: domain.RunPending,
		})
	}
	e.update(ctx, job)

	for _, run := range job.Runs {
		run.Status = domain.RunRunning
		e.update(ctx, job)
		e.emit(job.ID, sink, domain.EventAgentStart, domain.AgentStartPayload{
			Agent: domain.AgentBrief{ID: run.ID, Name: run.Name, Role: run.Role},
		})

		for step := 1; step <= run.Steps; step++ {
			e.sleep(ctx, e.stepDelay())

			if e.draw() < p {
				// Failure freezes the run where it stands and ends the whole
				// job; agents after this one never start.
				run.Status = domain.RunFailed
				job.Status = domain.JobError
				job.Error = fmt.Sprintf("agent %s failed at step %d/%d", run.ID, step, run.Steps)
				e.update(ctx, job)
				e.emit(job.ID, sink, domain.EventJobError, domain.JobErrorPayload{Message: job.Error, AgentID: run.ID})
				terminal = true
				e.finish(job, started)
				e.logger.Info("job failed", "jobId", job.ID, "agent", run.ID, "step", step)
				return nil
			}

			run.Progress = stepProgress(step, run.Steps)
			line := fmt.Sprintf("%s: step %d/%d done", run.Name, step, run.Steps)
			run.Logs = append(run.Logs, line)
			e.update(ctx, job)
			e.emit(job.ID, sink, domain.EventAgentProgress, domain.AgentProgressPayload{
				ID:       run.ID,
				Progress: run.Progress,
				Log:      line,
			})
		}

		run.Status = domain.RunCompleted
		run.Output = runSummary(run)
		e.update(ctx, job)
		e.emit(job.ID, sink, domain.EventAgentComplete, domain.AgentCompletePayload{ID: run.ID, Output: run.Output})
	}

	job.Result = buildResult(job)
	job.Status = domain.JobCompleted
	e.update(ctx, job)
	e.emit(job.ID, sink, domain.EventJobComplete, domain.JobCompletePayload{JobID: job.ID, Result: job.Result})
	terminal = true
	e.finish(job, started)
	e.logger.Info("job completed", "jobId", job.ID, "agents", len(job.Runs))
	return nil
}

func (e *Engine) emit(jobID string, sink stream.Sink, name string, data any) {
	metrics.EventEmittedTotal.WithLabelValues(name).Inc()
	if err := sink.Send(domain.Event{Name: name, Data: data}); err != nil {
		e.logger.Warn("event delivery failed", "jobId", jobID, "event", name, "error", err)
	}
}

func (e *Engine) update(ctx context.Context, job *domain.Job) {
	if err := e.store.Update(ctx, job); err != nil {
		e.logger.Error("persist job state", "jobId", job.ID, "error", err)
	}
}

func (e *Engine) finish(job *domain.Job, started time.Time) {
	status := string(job.Status)
	metrics.JobCompletedTotal.WithLabelValues(status).Inc()
	metrics.JobDurationSeconds.WithLabelValues(status).Observe(e.now().Sub(started).Seconds())
}

func (e *Engine) stepDelay() time.Duration {
	if e.stepDelayMax <= 0 {
		return 0
	}
	if e.stepDelayMax == e.stepDelayMin {
		return e.stepDelayMin
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepDelayMin + time.Duration(e.rng.Int63n(int64(e.stepDelayMax-e.stepDelayMin)))
}

func (e *Engine) draw() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func stepProgress(step, steps int) int {
	return int(math.Round(float64(step) / float64(steps) * 100))
}

func runSummary(run *domain.AgentRun) string {
	return fmt.Sprintf("%s: %s (%d steps)", run.Name, strings.ToLower(run.Role), run.Steps)
}

func buildResult(job *domain.Job) *domain.Result {
	summaries := make([]string, 0, len(job.Runs))
	rows := make([][]string, 0, len(job.Runs))
	for _, run := range job.Runs {
		summaries = append(summaries, run.Output)
		rows = append(rows, []string{run.Name, fmt.Sprintf("%d", run.Steps), string(run.Status)})
	}
	return &domain.Result{
		Title:   resultTitle(job.Request),
		Request: job.Request,
		Summary: strings.Join(summaries, "\n"),
		Artifacts: []domain.Artifact{
			{Type: domain.ArtifactChart, Title: "Pipeline Progress", Ref: "artifacts/pipeline-progress.svg"},
			{Type: domain.ArtifactTable, Title: "Stage Summary", Columns: []string{"Stage", "Steps", "Status"}, Rows: rows},
		},
	}
}

func resultTitle(request string) string {
	trimmed := strings.TrimSpace(request)
	if trimmed == "" {
		return "Report"
	}
	if utf8.RuneCountInString(trimmed) > 60 {
		trimmed = string([]rune(trimmed)[:60])
	}
	return "Report: " + trimmed
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
