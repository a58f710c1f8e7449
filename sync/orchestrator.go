// Package sync manages reconciliation sweeps over the dual-backed session
// store. The cache and the durable rows drift when one side fails mid
// write; sweeps walk the durable rows in uid order and repair the cache,
// checkpointing as they go so an interrupted sweep resumes where it
// stopped.
package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobMode string

const (
	// JobModeRehydrate re-warms cache entries from the durable rows.
	JobModeRehydrate JobMode = "rehydrate"
	// JobModePurge drops cache entries whose durable row is gone.
	JobModePurge JobMode = "purge"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one sweep over the session store. Checkpoint holds the last
// principal key processed, so a resumed job skips repaired entries.
type Job struct {
	ID            string
	Mode          JobMode
	Status        JobStatus
	Checkpoint    string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Metadata      map[string]any
}

type JobStore interface {
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, job Job) (Job, error)
}

// CheckpointStore remembers where the last sweep of each mode stopped, so
// a fresh job starts past the repaired range instead of from zero.
type CheckpointStore interface {
	Get(ctx context.Context, mode JobMode) (string, error)
	Put(ctx context.Context, mode JobMode, checkpoint string) error
}

type Orchestrator struct {
	Jobs        JobStore
	Checkpoints CheckpointStore
	Now         func() time.Time
}

func NewOrchestrator(jobs JobStore, checkpoints CheckpointStore) *Orchestrator {
	return &Orchestrator{
		Jobs:        jobs,
		Checkpoints: checkpoints,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Start queues a sweep job, pre-seeding the checkpoint from the last
// completed sweep of the same mode.
func (o *Orchestrator) Start(ctx context.Context, mode JobMode, metadata map[string]any) (Job, error) {
	if o == nil || o.Jobs == nil {
		return Job{}, fmt.Errorf("sync: orchestrator requires a job store")
	}
	switch mode {
	case JobModeRehydrate, JobModePurge:
	default:
		return Job{}, fmt.Errorf("sync: unsupported sweep mode %q", mode)
	}

	now := o.now()
	job := Job{
		ID:        uuid.NewString(),
		Mode:      mode,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  mergeAnyMap(nil, metadata),
	}
	if o.Checkpoints != nil {
		if checkpoint, err := o.Checkpoints.Get(ctx, mode); err == nil {
			job.Checkpoint = strings.TrimSpace(checkpoint)
		}
	}
	return o.Jobs.Create(ctx, job)
}

// Resume requeues a failed job. Succeeded jobs are left alone.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) error {
	if o == nil || o.Jobs == nil {
		return fmt.Errorf("sync: orchestrator requires a job store")
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("sync: job id is required")
	}
	job, err := o.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case JobStatusFailed:
		job.Status = JobStatusQueued
	case JobStatusSucceeded:
		return nil
	}
	job.Attempts++
	job.UpdatedAt = o.now()
	_, err = o.Jobs.Update(ctx, job)
	return err
}

// SaveCheckpoint records sweep progress and marks the job running.
func (o *Orchestrator) SaveCheckpoint(
	ctx context.Context,
	jobID string,
	checkpoint string,
	metadata map[string]any,
) (Job, error) {
	if o == nil || o.Jobs == nil {
		return Job{}, fmt.Errorf("sync: orchestrator requires a job store")
	}
	job, err := o.Jobs.Get(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return Job{}, err
	}
	job.Checkpoint = strings.TrimSpace(checkpoint)
	job.Status = JobStatusRunning
	job.UpdatedAt = o.now()
	job.Metadata = mergeAnyMap(job.Metadata, metadata)
	return o.Jobs.Update(ctx, job)
}

// Complete finishes the job and publishes its checkpoint for the next
// sweep of the same mode.
func (o *Orchestrator) Complete(
	ctx context.Context,
	jobID string,
	checkpoint string,
	metadata map[string]any,
) (Job, error) {
	job, err := o.SaveCheckpoint(ctx, jobID, checkpoint, metadata)
	if err != nil {
		return Job{}, err
	}
	job.Status = JobStatusSucceeded
	job.UpdatedAt = o.now()
	job, err = o.Jobs.Update(ctx, job)
	if err != nil {
		return Job{}, err
	}
	if o.Checkpoints != nil && job.Checkpoint != "" {
		if err := o.Checkpoints.Put(ctx, job.Mode, job.Checkpoint); err != nil {
			return Job{}, err
		}
	}
	return job, nil
}

func (o *Orchestrator) Fail(
	ctx context.Context,
	jobID string,
	cause error,
	nextAttemptAt *time.Time,
) (Job, error) {
	if o == nil || o.Jobs == nil {
		return Job{}, fmt.Errorf("sync: orchestrator requires a job store")
	}
	job, err := o.Jobs.Get(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return Job{}, err
	}
	job.Status = JobStatusFailed
	job.Attempts++
	job.UpdatedAt = o.now()
	job.Metadata = mergeAnyMap(job.Metadata, map[string]any{
		"last_error": strings.TrimSpace(fmt.Sprint(cause)),
	})
	if nextAttemptAt != nil {
		value := nextAttemptAt.UTC()
		job.NextAttemptAt = &value
	}
	return o.Jobs.Update(ctx, job)
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func mergeAnyMap(left map[string]any, right map[string]any) map[string]any {
	if len(left) == 0 && len(right) == 0 {
		return map[string]any{}
	}
	merged := map[string]any{}
	for key, value := range left {
		merged[key] = value
	}
	for key, value := range right {
		merged[key] = value
	}
	return merged
}

type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: map[string]Job{}}
}

func (s *MemoryJobStore) Create(_ context.Context, job Job) (Job, error) {
	if s == nil {
		return Job{}, fmt.Errorf("sync: job store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return Job{}, fmt.Errorf("sync: job %q already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (Job, error) {
	if s == nil {
		return Job{}, fmt.Errorf("sync: job store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[strings.TrimSpace(id)]
	if !ok {
		return Job{}, fmt.Errorf("sync: job %q not found", id)
	}
	return job, nil
}

func (s *MemoryJobStore) Update(_ context.Context, job Job) (Job, error) {
	if s == nil {
		return Job{}, fmt.Errorf("sync: job store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return Job{}, fmt.Errorf("sync: job %q not found", job.ID)
	}
	s.jobs[job.ID] = job
	return job, nil
}

type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[JobMode]string
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: map[JobMode]string{}}
}

func (s *MemoryCheckpointStore) Get(_ context.Context, mode JobMode) (string, error) {
	if s == nil {
		return "", fmt.Errorf("sync: checkpoint store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[mode], nil
}

func (s *MemoryCheckpointStore) Put(_ context.Context, mode JobMode, checkpoint string) error {
	if s == nil {
		return fmt.Errorf("sync: checkpoint store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[mode] = strings.TrimSpace(checkpoint)
	return nil
}
