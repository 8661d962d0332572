package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/osvaldoandrade/agentq/internal/metrics"
	"github.com/osvaldoandrade/agentq/pkg/domain"
	"github.com/osvaldoandrade/agentq/pkg/store"

	"github.com/google/uuid"
)

// ErrInvalidRequest is returned for submissions with missing or empty
// request text. No job identity is allocated in that case.
var ErrInvalidRequest = errors.New("request text is required")

// JobsService is the submission front door plus registry lookups. Submitting
// only registers intent: execution starts when a stream opens against the
// returned identity.
type JobsService interface {
	SubmitJob(ctx context.Context, request string) (*domain.Job, error)
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	GetResult(ctx context.Context, id string) (*domain.Result, error)
}

type jobsService struct {
	store  store.JobStore
	logger *slog.Logger
	now    func() time.Time
}

func NewJobsService(st store.JobStore, logger *slog.Logger, now func() time.Time) JobsService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &jobsService{store: st, logger: logger, now: now}
}

func (s *jobsService) SubmitJob(ctx context.Context, request string) (*domain.Job, error) {
	if strings.TrimSpace(request) == "" {
		return nil, ErrInvalidRequest
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		Status:    domain.JobPending,
		Request:   request,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	metrics.JobSubmittedTotal.Inc()
	s.logger.Info("job submitted", "jobId", job.ID)
	return job, nil
}

func (s *jobsService) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return s.store.Get(ctx, id)
}

func (s *jobsService) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Result == nil {
		return nil, store.ErrNotFound
	}
	return job.Result, nil
}
