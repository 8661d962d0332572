package services

import (
	"context"
	"errors"
	"sync"

	"github.com/osvaldoandrade/agentq/internal/engine"
	"github.com/osvaldoandrade/agentq/internal/stream"
	"github.com/osvaldoandrade/agentq/pkg/domain"
	"github.com/osvaldoandrade/agentq/pkg/store"
)

// ErrStreamConflict is returned when a subscriber attaches to a job that is
// neither pending (live execution) nor completed (replay). Attaching to a
// RUNNING or ERROR job is rejected rather than left undefined.
var ErrStreamConflict = errors.New("job stream not available in current state")

// StreamsService owns the stream-open decision: a pending job starts live
// execution, a completed job replays from the registry record, anything else
// conflicts.
type StreamsService interface {
	Attach(ctx context.Context, jobID string, failureRate float64, sink stream.Sink) error
}

type streamsService struct {
	store  store.JobStore
	engine *engine.Engine

	// active tracks jobs with a live engine invocation in this process. The
	// store snapshot alone cannot arbitrate concurrent attaches: the engine
	// persists RUNNING only after its first events, so two subscribers could
	// both read PENDING. The claim makes the PENDING->RUNNING handoff atomic.
	mu     sync.Mutex
	active map[string]struct{}
}

func NewStreamsService(st store.JobStore, eng *engine.Engine) StreamsService {
	return &streamsService{store: st, engine: eng, active: make(map[string]struct{})}
}

// Attach opens the one-way channel for jobID. Exactly one attach may drive a
// pending job; concurrent subscribers lose the claim and get ErrStreamConflict.
func (s *streamsService) Attach(ctx context.Context, jobID string, failureRate float64, sink stream.Sink) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case domain.JobPending:
		if !s.claim(jobID) {
			return ErrStreamConflict
		}
		defer s.release(jobID)

		// Re-read under the claim: a racing subscriber may have driven the
		// job to a terminal state between the snapshot and the claim.
		job, err = s.store.Get(ctx, jobID)
		if err != nil {
			return err
		}
		switch job.Status {
		case domain.JobPending:
			return s.engine.Execute(ctx, job, failureRate, sink)
		case domain.JobCompleted:
			return s.engine.Replay(ctx, job, sink)
		default:
			return ErrStreamConflict
		}
	case domain.JobCompleted:
		return s.engine.Replay(ctx, job, sink)
	default:
		return ErrStreamConflict
	}
}

func (s *streamsService) claim(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.active[jobID]; held {
		return false
	}
	s.active[jobID] = struct{}{}
	return true
}

func (s *streamsService) release(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
}
