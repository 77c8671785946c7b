package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const checkpointFile = "checkpoint.json"

// Checkpoint is the durable record of which segments and music a job has
// already produced. It is written after every completed unit of work, so a
// crash loses at most the unit in flight.
type Checkpoint struct {
	JobID       string            `json:"job_id"`
	Segments    map[string]string `json:"completed_segments"` // segment key -> file path
	OpeningDone bool              `json:"opening_complete"`
	MenuDone    map[int]bool      `json:"menu_items_complete"`
	ClosingDone bool              `json:"closing_complete"`
	MusicDone   bool              `json:"music_generated"`
	MusicPath   string            `json:"music_path,omitempty"`
	UpdatedAt   time.Time         `json:"checkpoint_time"`
}

// NewCheckpoint returns an empty checkpoint for the given job.
func NewCheckpoint(jobID string) *Checkpoint {
	return &Checkpoint{
		JobID:     jobID,
		Segments:  make(map[string]string),
		MenuDone:  make(map[int]bool),
		UpdatedAt: time.Now(),
	}
}

// CheckpointStore reads and writes the per-job checkpoint file inside the
// job's working directory.
type CheckpointStore struct{}

// NewCheckpointStore creates a new checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

// Load reads the checkpoint for jobID from workDir. A missing file is not an
// error: it returns a fresh empty checkpoint.
func (s *CheckpointStore) Load(jobID, workDir string) (*Checkpoint, error) {
	path := filepath.Join(workDir, checkpointFile)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewCheckpoint(jobID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshaling checkpoint: %w", err)
	}
	if cp.Segments == nil {
		cp.Segments = make(map[string]string)
	}
	if cp.MenuDone == nil {
		cp.MenuDone = make(map[int]bool)
	}

	return &cp, nil
}

// Save writes the checkpoint to workDir. The write goes to a temp file first
// and is renamed into place, so a crash mid-write never corrupts the previous
// valid checkpoint.
func (s *CheckpointStore) Save(cp *Checkpoint, workDir string) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	path := filepath.Join(workDir, checkpointFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}

	return nil
}
