package store

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/agentq/pkg/domain"
)

var (
	// ErrNotFound is returned when a job id does not exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a job id is already registered
	ErrAlreadyExists = errors.New("already exists")
)

// JobStore is the process-wide job registry. Each job has a single writer
// (the engine invocation driving it); the store must tolerate concurrent
// reads while that writer is active, which providers satisfy by handing out
// snapshot copies.
type JobStore interface {
	// Create registers a new job record; fails with ErrAlreadyExists on id reuse
	Create(ctx context.Context, job *domain.Job) error

	// Get retrieves a snapshot of a job by id
	Get(ctx context.Context, id string) (*domain.Job, error)

	// Update replaces the stored record with the writer's current view
	Update(ctx context.Context, job *domain.Job) error

	// Health checks if the backing store is reachable
	Health(ctx context.Context) error

	// Close releases resources held by the store
	Close() error
}
