package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ibrahimyu/promoreel/internal/narration"
	"github.com/ibrahimyu/promoreel/internal/synthesis"
)

// Segment keys. Menu items use MenuSegmentKey(i).
const (
	SegmentOpening = "opening"
	SegmentClosing = "closing"
)

// MenuSegmentKey returns the checkpoint key for the i-th menu item.
func MenuSegmentKey(i int) string {
	return fmt.Sprintf("menu_%d", i)
}

// SegmentTask describes one clip to generate. Narration is only set for menu
// item segments.
type SegmentTask struct {
	Name      string
	Prompt    string
	ImageURL  string
	OutDir    string
	Narration *NarrationInput
}

// NarrationInput carries the food facts a menu segment narrates.
type NarrationInput struct {
	FoodName        string
	FoodDescription string
}

// SegmentGenerator produces a single video segment: narrate (menu items
// only), submit to the synthesis provider, poll to a terminal state, download.
type SegmentGenerator struct {
	synth        synthesis.Client
	narrator     narration.Provider
	resolution   string
	maxAttempts  int
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewSegmentGenerator creates a new segment generator.
func NewSegmentGenerator(synth synthesis.Client, narrator narration.Provider, resolution string, maxAttempts int, pollInterval time.Duration, logger *slog.Logger) *SegmentGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SegmentGenerator{
		synth:        synth,
		narrator:     narrator,
		resolution:   resolution,
		maxAttempts:  maxAttempts,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Generate produces the clip for task and returns its local path
// (outDir/<name>.mp4). Narration failures degrade to a templated script; any
// synthesis failure is fatal to the segment.
func (g *SegmentGenerator) Generate(ctx context.Context, task SegmentTask) (string, error) {
	prompt := task.Prompt
	if task.Narration != nil {
		prompt = g.narrate(ctx, task.Narration)
	}

	taskID, err := g.synth.Submit(ctx, synthesis.SubmitRequest{
		Prompt:       prompt,
		ImageURL:     task.ImageURL,
		Resolution:   g.resolution,
		PromptExtend: true,
	})
	if err != nil {
		return "", fmt.Errorf("submitting segment %s: %w", task.Name, err)
	}
	g.logger.Info("synthesis task started", "segment", task.Name, "task_id", taskID)

	result, err := g.synth.PollUntilDone(ctx, taskID, g.maxAttempts, g.pollInterval)
	if err != nil {
		return "", fmt.Errorf("polling segment %s: %w", task.Name, err)
	}
	if result.Status != synthesis.StatusSucceeded {
		return "", fmt.Errorf("segment %s generation failed: %s", task.Name, result.Message)
	}

	dest := filepath.Join(task.OutDir, task.Name+".mp4")
	if err := g.synth.Download(ctx, result.VideoURL, dest); err != nil {
		return "", fmt.Errorf("downloading segment %s: %w", task.Name, err)
	}

	return dest, nil
}

func (g *SegmentGenerator) narrate(ctx context.Context, in *NarrationInput) string {
	script, err := g.narrator.Narrate(ctx, narration.Request{
		FoodName:        in.FoodName,
		FoodDescription: in.FoodDescription,
		Length:          "short",
		Tone:            "enthusiastic",
	})
	if err != nil {
		g.logger.Warn("narration failed, using template", "food", in.FoodName, "error", err)
		return narration.FallbackScript(in.FoodName, in.FoodDescription)
	}
	return script
}
