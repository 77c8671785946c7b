// Package job tracks video generation jobs: an in-memory registry with a
// periodic JSON snapshot, and the service that launches pipeline runs.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ibrahimyu/promoreel/pkg/models"
)

var (
	// ErrJobNotFound is returned when the requested job id is unknown.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotResumable is returned when resume is requested for a job that
	// has not failed.
	ErrNotResumable = errors.New("job is not in a resumable state")
)

// Registry is the single owner of job state. All reads return copies; all
// writes go through its methods, so callers never share a *models.Job with
// the registry's internal map.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*models.Job
	path      string
	retention time.Duration
	logger    *slog.Logger
}

// NewRegistry creates a registry that snapshots to path and evicts terminal
// jobs older than retention.
func NewRegistry(path string, retention time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		jobs:      make(map[string]*models.Job),
		path:      path,
		retention: retention,
		logger:    logger,
	}
}

// Create registers a new processing job.
func (r *Registry) Create(id string) *models.Job {
	now := time.Now()
	j := &models.Job{
		ID:        id,
		Status:    models.JobStatusProcessing,
		Stage:     "init",
		Percent:   0,
		Message:   "Job accepted",
		StartedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	copy := *j
	return &copy
}

// Get returns a copy of the job, or ErrJobNotFound.
func (r *Registry) Get(id string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copy := *j
	return &copy, nil
}

// List returns copies of all jobs, newest first.
func (r *Registry) List() []*models.Job {
	r.mu.RLock()
	out := make([]*models.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		copy := *j
		out = append(out, &copy)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].StartedAt.After(out[k].StartedAt)
	})
	return out
}

// UpdateProgress records a progress event for a running job. Updates on
// unknown or terminal jobs are dropped.
func (r *Registry) UpdateProgress(id, stage string, percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.Status != models.JobStatusProcessing {
		return
	}
	j.Stage = stage
	j.Percent = percent
	j.Message = message
	j.UpdatedAt = time.Now()
}

// Complete marks the job completed with its final video URL.
func (r *Registry) Complete(id, videoURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.Status = models.JobStatusCompleted
	j.Stage = "done"
	j.Percent = 100
	j.Message = "Video generation complete"
	j.VideoURL = videoURL
	j.Error = ""
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed with the given reason.
func (r *Registry) Fail(id, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.Status = models.JobStatusFailed
	j.Message = "Video generation failed"
	j.Error = reason
	j.UpdatedAt = time.Now()
}

// MarkResuming flips a failed job back to processing. Only failed jobs may
// resume; completed and running jobs return ErrNotResumable.
func (r *Registry) MarkResuming(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != models.JobStatusFailed {
		return ErrNotResumable
	}
	j.Status = models.JobStatusProcessing
	j.Stage = "init"
	j.Message = "Resuming job"
	j.Error = ""
	j.UpdatedAt = time.Now()
	return nil
}

// CountProcessing returns the number of non-terminal jobs.
func (r *Registry) CountProcessing() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, j := range r.jobs {
		if j.Status == models.JobStatusProcessing {
			n++
		}
	}
	return n
}

// LoadSnapshot restores jobs from the snapshot file. Jobs that were mid-run
// when the process died are marked failed so clients see a resumable state
// instead of a job stuck at processing forever.
func (r *Registry) LoadSnapshot() error {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading job snapshot: %w", err)
	}

	var jobs []*models.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("unmarshaling job snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range jobs {
		if j.ID == "" {
			continue
		}
		if j.Status == models.JobStatusProcessing {
			j.Status = models.JobStatusFailed
			j.Message = "Video generation failed"
			j.Error = "server restarted during processing"
			j.UpdatedAt = time.Now()
		}
		r.jobs[j.ID] = j
	}
	return nil
}

// Run persists the registry and sweeps expired jobs on the given interval
// until ctx is canceled. A final snapshot is written on shutdown.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := r.persist(); err != nil {
				r.logger.Error("final job snapshot failed", "error", err)
			}
			return
		case <-ticker.C:
			r.sweep()
			if err := r.persist(); err != nil {
				r.logger.Error("job snapshot failed", "error", err)
			}
		}
	}
}

// sweep drops terminal jobs whose last update is older than the retention
// window.
func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, j := range r.jobs {
		if j.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			r.logger.Info("evicted expired job", "job_id", id, "status", j.Status)
		}
	}
}

func (r *Registry) persist() error {
	r.mu.RLock()
	jobs := make([]*models.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		copy := *j
		jobs = append(jobs, &copy)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartedAt.Before(jobs[k].StartedAt)
	})

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job snapshot: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing job snapshot: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing job snapshot: %w", err)
	}
	return nil
}
