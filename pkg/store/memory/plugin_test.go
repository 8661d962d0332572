package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/agentq/pkg/domain"
	"github.com/osvaldoandrade/agentq/pkg/store"
)

func newTestStore(t *testing.T) store.JobStore {
	t.Helper()
	s, err := NewPlugin(store.PluginConfig{})
	if err != nil {
		t.Fatalf("NewPlugin: %v", err)
	}
	return s
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job := &domain.Job{
		ID:        "job-1",
		Status:    domain.JobPending,
		Request:   "do the thing",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobPending || got.Request != "do the thing" {
		t.Errorf("unexpected job: %+v", got)
	}
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job := &domain.Job{ID: "job-1", Status: domain.JobPending}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, job); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), &domain.Job{ID: "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job := &domain.Job{
		ID:     "job-1",
		Status: domain.JobRunning,
		Runs: []*domain.AgentRun{
			{ID: "research", Name: "Research", Status: domain.RunRunning, Progress: 40, Logs: []string{"step 1"}},
		},
	}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Writer keeps mutating its own copy; stored record must not move.
	job.Runs[0].Progress = 80
	job.Runs[0].Logs = append(job.Runs[0].Logs, "step 2")

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Runs[0].Progress != 40 || len(got.Runs[0].Logs) != 1 {
		t.Errorf("stored record was aliased by the writer: %+v", got.Runs[0])
	}

	// And mutating the snapshot must not leak back into the store.
	got.Runs[0].Progress = 99
	again, _ := s.Get(ctx, "job-1")
	if again.Runs[0].Progress != 40 {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestUpdatePublishesNewSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	job := &domain.Job{ID: "job-1", Status: domain.JobRunning}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	job.Status = domain.JobCompleted
	job.Result = &domain.Result{Title: "done", Summary: "all good"}
	if err := s.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobCompleted || got.Result == nil || got.Result.Title != "done" {
		t.Errorf("update not visible: %+v", got)
	}
}
