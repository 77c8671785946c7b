package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/ibrahimyu/promoreel/internal/metrics"
	"github.com/ibrahimyu/promoreel/internal/pipeline"
	"github.com/ibrahimyu/promoreel/pkg/models"
)

const inputFile = "input.json"

// Runner executes one pipeline run for a job.
type Runner interface {
	Run(ctx context.Context, jobID string, input *models.VideoInput, workDir string, report pipeline.ProgressFunc) (string, error)
}

// Service starts and resumes video generation jobs. Runs happen on background
// goroutines; job state is observed through the registry.
type Service struct {
	registry   *Registry
	runner     Runner
	outputRoot string
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewService creates a new job service.
func NewService(registry *Registry, runner Runner, outputRoot string, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:   registry,
		runner:     runner,
		outputRoot: outputRoot,
		metrics:    m,
		logger:     logger,
	}
}

// Registry exposes the registry for read-side handlers.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Start accepts a new job, persists its input for later resume, and launches
// the pipeline in the background. It returns immediately with the created job.
func (s *Service) Start(input *models.VideoInput) (*models.Job, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	workDir := s.workDir(id)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job directory: %w", err)
	}
	if err := writeInput(workDir, input); err != nil {
		return nil, err
	}

	j := s.registry.Create(id)
	s.metrics.JobsStarted.Inc()
	s.logger.Info("job accepted", "job_id", id, "restaurant", input.RestaurantName, "menu_items", len(input.Menu))

	go s.run(id, input, workDir)
	return j, nil
}

// Resume relaunches a failed job from its checkpoint. The original input is
// reread from the job directory, so resume needs only the job id.
func (s *Service) Resume(jobID string) (*models.Job, error) {
	if _, err := s.registry.Get(jobID); err != nil {
		return nil, err
	}

	workDir := s.workDir(jobID)
	input, err := readInput(workDir)
	if err != nil {
		return nil, err
	}

	if err := s.registry.MarkResuming(jobID); err != nil {
		return nil, err
	}
	s.logger.Info("job resuming", "job_id", jobID)

	go s.run(jobID, input, workDir)
	return s.registry.Get(jobID)
}

// run drives one pipeline execution to a terminal job state. It owns its own
// context: job lifetime is independent of the HTTP request that started it.
func (s *Service) run(id string, input *models.VideoInput, workDir string) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("pipeline panicked", "job_id", id, "panic", rec)
			s.registry.Fail(id, fmt.Sprintf("internal error: %v", rec))
			s.metrics.JobsFailed.Inc()
		}
	}()

	report := func(p pipeline.Progress) {
		s.registry.UpdateProgress(id, p.Stage, p.Percent, p.Message)
		if p.SegmentDone {
			s.metrics.SegmentsGenerated.Inc()
		}
	}

	final, err := s.runner.Run(context.Background(), id, input, workDir, report)
	if err != nil {
		s.logger.Error("job failed", "job_id", id, "error", err)
		s.registry.Fail(id, err.Error())
		s.metrics.JobsFailed.Inc()
		return
	}

	videoURL := "/output/" + filepath.Base(workDir) + "/" + filepath.Base(final)
	s.registry.Complete(id, videoURL)
	s.metrics.JobsCompleted.Inc()
	s.logger.Info("job completed", "job_id", id, "video_url", videoURL)
}

func (s *Service) workDir(id string) string {
	return filepath.Join(s.outputRoot, "output_"+id)
}

func writeInput(workDir string, input *models.VideoInput) error {
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling job input: %w", err)
	}
	if err := os.WriteFile(filepath.Join(workDir, inputFile), data, 0o644); err != nil {
		return fmt.Errorf("writing job input: %w", err)
	}
	return nil
}

func readInput(workDir string) (*models.VideoInput, error) {
	data, err := os.ReadFile(filepath.Join(workDir, inputFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: job input missing", ErrNotResumable)
	}
	if err != nil {
		return nil, fmt.Errorf("reading job input: %w", err)
	}

	var input models.VideoInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("unmarshaling job input: %w", err)
	}
	return &input, nil
}
