// Package pipeline drives the end-to-end video generation job: concurrent
// segment synthesis with durable checkpoints, optional music generation, and
// final assembly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ibrahimyu/promoreel/internal/media"
	"github.com/ibrahimyu/promoreel/internal/music"
	"github.com/ibrahimyu/promoreel/pkg/models"
)

// Pipeline stages as reported through ProgressFunc. Percentages follow a
// fixed schedule rather than measured work.
const (
	StageInit       = "init"
	StageSegments   = "segments"
	StageMusic      = "music"
	StageCombining  = "combining"
	StageFinalizing = "finalizing"
)

// Progress is one typed progress event emitted by the pipeline. Consumers
// branch on the fields, never on message text.
type Progress struct {
	Stage   string
	Percent int
	Message string

	// SegmentDone is set on exactly one event per newly generated segment.
	// Segments reused from a checkpoint do not fire it.
	SegmentDone bool
}

// ProgressFunc receives typed progress events from each pipeline stage.
type ProgressFunc func(p Progress)

// Orchestrator runs one job from input spec to final video. Each job owns its
// working directory and checkpoint file; multiple jobs may run concurrently.
type Orchestrator struct {
	segments    *SegmentGenerator
	music       music.Generator
	assembler   media.Assembler
	checkpoints *CheckpointStore
	logger      *slog.Logger
}

// NewOrchestrator creates a new pipeline orchestrator.
func NewOrchestrator(segments *SegmentGenerator, musicGen music.Generator, assembler media.Assembler, checkpoints *CheckpointStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		segments:    segments,
		music:       musicGen,
		assembler:   assembler,
		checkpoints: checkpoints,
		logger:      logger,
	}
}

// Run executes the job. Segments already recorded in the checkpoint are
// reused, so re-running a failed job retries only the work that never
// finished. Any segment or assembly failure fails the job; music failure
// degrades to a silent video.
func (o *Orchestrator) Run(ctx context.Context, jobID string, input *models.VideoInput, workDir string, report ProgressFunc) (string, error) {
	if report == nil {
		report = func(Progress) {}
	}

	if err := input.Validate(); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	report(Progress{Stage: StageInit, Percent: 5, Message: "Initializing video generation"})

	tempDir := filepath.Join(workDir, "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("creating working directory: %w", err)
	}

	cp, err := o.checkpoints.Load(jobID, workDir)
	if err != nil {
		o.logger.Warn("loading checkpoint failed, starting fresh", "job_id", jobID, "error", err)
		cp = NewCheckpoint(jobID)
	}

	report(Progress{Stage: StageSegments, Percent: 20, Message: "Generating video segments"})
	paths, err := o.generateSegments(ctx, input, cp, workDir, tempDir, report)
	if err != nil {
		return "", err
	}

	musicPath := o.generateMusic(ctx, input, cp, workDir, report)

	report(Progress{Stage: StageCombining, Percent: 80, Message: "Combining segments and adding music"})
	final, err := o.assembler.Combine(ctx, paths, musicPath, workDir)
	if err != nil {
		return "", fmt.Errorf("assembling final video: %w", err)
	}

	report(Progress{Stage: StageFinalizing, Percent: 95, Message: "Finalizing video"})
	return final, nil
}

// generateSegments fans out one goroutine per missing segment and joins them
// before returning. Results land in fixed slots — 0 opening, 1..N menu items
// in input order, N+1 closing — so the final ordering never depends on
// completion order.
func (o *Orchestrator) generateSegments(ctx context.Context, input *models.VideoInput, cp *Checkpoint, workDir, tempDir string, report ProgressFunc) ([]string, error) {
	total := len(input.Menu) + 2
	slots := make([]string, total)

	var mu sync.Mutex
	done := 0

	// Resolve every checkpointed slot before any goroutine starts. Once the
	// fan-out begins, the checkpoint maps may only be touched under mu.
	if cp.OpeningDone {
		slots[0] = cp.Segments[SegmentOpening]
		done++
		o.logger.Info("reusing checkpointed segment", "job_id", cp.JobID, "segment", SegmentOpening)
	}
	for i := range input.Menu {
		if cp.MenuDone[i] {
			key := MenuSegmentKey(i)
			slots[i+1] = cp.Segments[key]
			done++
			o.logger.Info("reusing checkpointed segment", "job_id", cp.JobID, "segment", key)
		}
	}
	if cp.ClosingDone {
		slots[total-1] = cp.Segments[SegmentClosing]
		done++
		o.logger.Info("reusing checkpointed segment", "job_id", cp.JobID, "segment", SegmentClosing)
	}

	// complete records one finished segment: slot assignment, checkpoint
	// write, and the progress bump all happen under one lock.
	complete := func(slot int, key, path string, mark func(*Checkpoint)) {
		mu.Lock()
		defer mu.Unlock()

		slots[slot] = path
		cp.Segments[key] = path
		mark(cp)
		if err := o.checkpoints.Save(cp, workDir); err != nil {
			o.logger.Warn("saving checkpoint failed", "job_id", cp.JobID, "segment", key, "error", err)
		}
		done++
		report(Progress{
			Stage:       StageSegments,
			Percent:     segmentPercent(done, total),
			Message:     fmt.Sprintf("Segment %s generated", key),
			SegmentDone: true,
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	if !cp.OpeningDone {
		g.Go(func() error {
			path, err := o.segments.Generate(gctx, SegmentTask{
				Name:     SegmentOpening,
				Prompt:   input.OpeningScene.Prompt,
				ImageURL: input.OpeningScene.ImageURL,
				OutDir:   tempDir,
			})
			if err != nil {
				return fmt.Errorf("generating opening segment: %w", err)
			}
			complete(0, SegmentOpening, path, func(c *Checkpoint) { c.OpeningDone = true })
			return nil
		})
	}

	for i, item := range input.Menu {
		if cp.MenuDone[i] {
			continue
		}

		key := MenuSegmentKey(i)
		slot := i + 1
		idx := i
		g.Go(func() error {
			path, err := o.segments.Generate(gctx, SegmentTask{
				Name:     key,
				Prompt:   item.Description,
				ImageURL: item.PhotoURL,
				OutDir:   tempDir,
				Narration: &NarrationInput{
					FoodName:        item.Name,
					FoodDescription: item.Description,
				},
			})
			if err != nil {
				return fmt.Errorf("generating menu segment %d: %w", idx, err)
			}
			complete(slot, key, path, func(c *Checkpoint) { c.MenuDone[idx] = true })
			return nil
		})
	}

	if !cp.ClosingDone {
		g.Go(func() error {
			path, err := o.segments.Generate(gctx, SegmentTask{
				Name:     SegmentClosing,
				Prompt:   input.ClosingScene.Prompt,
				ImageURL: input.ClosingScene.ImageURL,
				OutDir:   tempDir,
			})
			if err != nil {
				return fmt.Errorf("generating closing segment: %w", err)
			}
			complete(total-1, SegmentClosing, path, func(c *Checkpoint) { c.ClosingDone = true })
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slots, nil
}

// generateMusic returns the soundtrack path, or empty when music is disabled
// or generation fails. Music failure is a degraded result, never a job
// failure.
func (o *Orchestrator) generateMusic(ctx context.Context, input *models.VideoInput, cp *Checkpoint, workDir string, report ProgressFunc) string {
	if !input.Music.Enabled {
		return ""
	}
	if cp.MusicDone {
		o.logger.Info("reusing checkpointed music", "job_id", cp.JobID, "path", cp.MusicPath)
		return cp.MusicPath
	}

	report(Progress{Stage: StageMusic, Percent: 50, Message: "Generating background music"})

	path, err := o.music.Generate(ctx, musicTags(input), musicLyrics(input), filepath.Join(workDir, "music"))
	if err != nil {
		o.logger.Warn("music generation failed, continuing without soundtrack", "job_id", cp.JobID, "error", err)
		return ""
	}

	cp.MusicDone = true
	cp.MusicPath = path
	if err := o.checkpoints.Save(cp, workDir); err != nil {
		o.logger.Warn("saving checkpoint failed", "job_id", cp.JobID, "error", err)
	}

	return path
}

// segmentPercent maps completed segments onto the 20-70 band of the fixed
// progress schedule.
func segmentPercent(done, total int) int {
	p := 20 + 50*done/total
	if p > 70 {
		p = 70
	}
	return p
}

func musicTags(input *models.VideoInput) string {
	tags := input.Music.Genres
	if tags == "" {
		tags = "ambient instrumental lounge"
	}
	if input.Music.BPM > 0 {
		tags += fmt.Sprintf(" %dbpm", input.Music.BPM)
	}
	return tags
}

func musicLyrics(input *models.VideoInput) string {
	if input.Music.Lyrics != "" {
		return input.Music.Lyrics
	}
	return fmt.Sprintf("%s - %s\n%s", input.RestaurantName, input.RestaurantAddress, input.OpeningScene.Prompt)
}
