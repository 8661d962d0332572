package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/osvaldoandrade/agentq/internal/stream"
	"github.com/osvaldoandrade/agentq/pkg/domain"
)

// ErrNotReplayable is returned when a subscriber attaches to a job that is
// not in the COMPLETED terminal state.
var ErrNotReplayable = errors.New("job is not replayable")

// Replay reconstructs the event sequence a live run would have produced,
// using only the stored job record. Only fully completed jobs replay; the
// per-agent progress collapses to the single final value since intermediate
// draws are not retained.
func (e *Engine) Replay(ctx context.Context, job *domain.Job, sink stream.Sink) error {
	if job.Status != domain.JobCompleted {
		return ErrNotReplayable
	}

	e.emit(job.ID, sink, domain.EventJobStart, domain.JobStartPayload{JobID: job.ID, CreatedAt: job.CreatedAt})

	specs := make([]domain.AgentSpec, 0, len(job.Runs))
	for _, run := range job.Runs {
		specs = append(specs, domain.AgentSpec{ID: run.ID, Name: run.Name, Role: run.Role, Steps: run.Steps})
	}
	e.emit(job.ID, sink, domain.EventPlan, domain.PlanPayload{Agents: specs})

	for _, run := range job.Runs {
		e.emit(job.ID, sink, domain.EventAgentStart, domain.AgentStartPayload{
			Agent: domain.AgentBrief{ID: run.ID, Name: run.Name, Role: run.Role},
		})
		e.emit(job.ID, sink, domain.EventAgentProgress, domain.AgentProgressPayload{
			ID:       run.ID,
			Progress: run.Progress,
			Log:      lastLog(run),
		})
		e.emit(job.ID, sink, domain.EventAgentComplete, domain.AgentCompletePayload{ID: run.ID, Output: run.Output})
	}

	e.emit(job.ID, sink, domain.EventJobComplete, domain.JobCompletePayload{JobID: job.ID, Result: job.Result})
	return nil
}

func lastLog(run *domain.AgentRun) string {
	if len(run.Logs) > 0 {
		return run.Logs[len(run.Logs)-1]
	}
	return fmt.Sprintf("%s: step %d/%d done", run.Name, run.Steps, run.Steps)
}
