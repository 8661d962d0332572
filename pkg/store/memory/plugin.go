package memory

import (
	"context"
	"sync"

	"github.com/osvaldoandrade/agentq/pkg/domain"
	"github.com/osvaldoandrade/agentq/pkg/store"
)

// Plugin implements JobStore on process memory. This is the default registry:
// job history lives exactly as long as the process.
type Plugin struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewPlugin creates a new in-memory job store
func NewPlugin(config store.PluginConfig) (store.JobStore, error) {
	return &Plugin{jobs: make(map[string]*domain.Job)}, nil
}

func init() {
	store.RegisterProvider("memory", NewPlugin)
}

func (p *Plugin) Create(ctx context.Context, job *domain.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.jobs[job.ID]; exists {
		return store.ErrAlreadyExists
	}
	p.jobs[job.ID] = cloneJob(job)
	return nil
}

func (p *Plugin) Get(ctx context.Context, id string) (*domain.Job, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	job, exists := p.jobs[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneJob(job), nil
}

func (p *Plugin) Update(ctx context.Context, job *domain.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.jobs[job.ID]; !exists {
		return store.ErrNotFound
	}
	p.jobs[job.ID] = cloneJob(job)
	return nil
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

// cloneJob deep-copies a job so readers never observe the engine's in-flight
// mutations.
func cloneJob(job *domain.Job) *domain.Job {
	cp := *job
	if job.Runs != nil {
		cp.Runs = make([]*domain.AgentRun, len(job.Runs))
		for i, run := range job.Runs {
			r := *run
			if run.Logs != nil {
				r.Logs = append([]string(nil), run.Logs...)
			}
			cp.Runs[i] = &r
		}
	}
	if job.Result != nil {
		res := *job.Result
		if job.Result.Artifacts != nil {
			res.Artifacts = append([]domain.Artifact(nil), job.Result.Artifacts...)
		}
		cp.Result = &res
	}
	return &cp
}
