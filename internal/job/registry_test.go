package job

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimyu/promoreel/pkg/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(filepath.Join(t.TempDir(), "jobs.json"), time.Hour, nil)
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)

	created := r.Create("job-1")
	assert.Equal(t, models.JobStatusProcessing, created.Status)
	assert.Equal(t, 0, created.Percent)

	got, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)

	// Mutating the returned copy must not touch registry state.
	got.Status = models.JobStatusFailed
	again, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, again.Status)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRegistryUpdateProgress(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("job-1")

	r.UpdateProgress("job-1", "segments", 45, "Segment menu_0 generated")

	got, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, "segments", got.Stage)
	assert.Equal(t, 45, got.Percent)
	assert.Equal(t, "Segment menu_0 generated", got.Message)
}

func TestRegistryProgressIgnoredAfterTerminal(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("job-1")
	r.Complete("job-1", "/output/output_job-1/final_video.mp4")

	r.UpdateProgress("job-1", "segments", 30, "late event")

	got, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Percent)
}

func TestRegistryFailAndResume(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("job-1")
	r.Fail("job-1", "synthesis timed out")

	got, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "synthesis timed out", got.Error)

	require.NoError(t, r.MarkResuming("job-1"))

	got, err = r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Empty(t, got.Error)
}

func TestRegistryResumeRules(t *testing.T) {
	r := newTestRegistry(t)

	r.Create("running")
	r.Create("done")
	r.Complete("done", "/output/x/final_video.mp4")

	assert.ErrorIs(t, r.MarkResuming("missing"), ErrJobNotFound)
	assert.ErrorIs(t, r.MarkResuming("running"), ErrNotResumable)
	assert.ErrorIs(t, r.MarkResuming("done"), ErrNotResumable)
}

func TestRegistryListNewestFirst(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("first")
	time.Sleep(5 * time.Millisecond)
	r.Create("second")

	jobs := r.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "second", jobs[0].ID)
	assert.Equal(t, "first", jobs[1].ID)
}

func TestRegistryCountProcessing(t *testing.T) {
	r := newTestRegistry(t)
	r.Create("a")
	r.Create("b")
	r.Fail("b", "boom")

	assert.Equal(t, 1, r.CountProcessing())
}

func TestRegistrySnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	r := NewRegistry(path, time.Hour, nil)
	r.Create("job-1")
	r.Complete("job-1", "/output/output_job-1/final_video.mp4")

	require.NoError(t, r.persist())
	require.FileExists(t, path)

	restored := NewRegistry(path, time.Hour, nil)
	require.NoError(t, restored.LoadSnapshot())

	got, err := restored.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, "/output/output_job-1/final_video.mp4", got.VideoURL)
}

func TestRegistrySnapshotMarksInterruptedJobsFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	jobs := []*models.Job{{
		ID:        "job-1",
		Status:    models.JobStatusProcessing,
		Stage:     "segments",
		Percent:   40,
		StartedAt: time.Now(),
		UpdatedAt: time.Now(),
	}}
	data, err := json.Marshal(jobs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r := NewRegistry(path, time.Hour, nil)
	require.NoError(t, r.LoadSnapshot())

	got, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "restarted")
}

func TestRegistryLoadSnapshotMissingFile(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.LoadSnapshot())
	assert.Empty(t, r.List())
}

func TestRegistrySweepEvictsOldTerminalJobs(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "jobs.json"), 10*time.Millisecond, nil)

	r.Create("old-done")
	r.Complete("old-done", "/output/x/final_video.mp4")
	r.Create("still-running")

	time.Sleep(20 * time.Millisecond)
	r.sweep()

	_, err := r.Get("old-done")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = r.Get("still-running")
	assert.NoError(t, err, "non-terminal jobs are never evicted")
}

func TestRegistryRunWritesFinalSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	r := NewRegistry(path, time.Hour, nil)
	r.Create("job-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.FileExists(t, path)
}
