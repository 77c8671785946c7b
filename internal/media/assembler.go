// Package media assembles generated clips into the final video using ffmpeg.
// Adjacent clips are joined with a crossfade, and an optional audio track is
// muxed over the picture stream.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoSegments is returned when Combine is called with nothing to combine.
var ErrNoSegments = errors.New("no video segments to combine")

const (
	combinedName = "combined_video.mp4"
	finalName    = "final_video.mp4"

	// Crossfade overlap between adjacent clips, in seconds.
	transitionDuration = 1.0

	// Used when ffprobe cannot measure a clip.
	fallbackDuration = 5.0
)

// Assembler is the interface for final video assembly.
type Assembler interface {
	Combine(ctx context.Context, segments []string, musicPath, outDir string) (string, error)
}

// RunFunc executes an external command and returns its output. Injectable so
// tests can stub ffmpeg/ffprobe.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg implements Assembler by shelling out to ffmpeg and ffprobe.
type FFmpeg struct {
	run    RunFunc
	logger *slog.Logger
}

// NewFFmpeg creates a new ffmpeg-backed assembler.
func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{run: defaultRun, logger: logger}
}

// Combine joins the ordered segments into one video under outDir and, when
// musicPath is non-empty, muxes the audio track over it. A mux failure falls
// back to the silent combined video rather than failing the job.
func (f *FFmpeg) Combine(ctx context.Context, segments []string, musicPath, outDir string) (string, error) {
	if len(segments) == 0 {
		return "", ErrNoSegments
	}

	combined := filepath.Join(outDir, combinedName)

	if len(segments) == 1 {
		out, err := f.run(ctx, "ffmpeg", "-y", "-i", segments[0], "-c", "copy", combined)
		if err != nil {
			return "", fmt.Errorf("copying single segment: %w, output: %s", err, string(out))
		}
	} else {
		if err := f.crossfadeChain(ctx, segments, combined, outDir); err != nil {
			return "", err
		}
	}

	final := filepath.Join(outDir, finalName)

	if musicPath != "" {
		out, err := f.run(ctx, "ffmpeg",
			"-y",
			"-i", combined,
			"-i", musicPath,
			"-map", "0:v", "-map", "1:a",
			"-shortest",
			"-c:v", "copy",
			"-c:a", "aac", "-b:a", "192k",
			final,
		)
		if err != nil {
			// Degraded result: ship the video without its soundtrack.
			f.logger.Warn("muxing music failed, using silent video", "error", err, "output", string(out))
			if err := copyFile(combined, final); err != nil {
				return "", fmt.Errorf("copying combined video: %w", err)
			}
		}
	} else {
		if err := copyFile(combined, final); err != nil {
			return "", fmt.Errorf("copying combined video: %w", err)
		}
	}

	return final, nil
}

// crossfadeChain folds the segments left to right, re-encoding each adjacent
// pair with an xfade whose offset comes from the measured duration of the
// running result.
func (f *FFmpeg) crossfadeChain(ctx context.Context, segments []string, combined, outDir string) error {
	tempDir := filepath.Join(outDir, "temp_transitions")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fmt.Errorf("creating transitions directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	current := filepath.Join(tempDir, "chain_0.mp4")
	out, err := f.run(ctx, "ffmpeg", "-y", "-i", segments[0], "-c", "copy", current)
	if err != nil {
		return fmt.Errorf("copying first segment: %w, output: %s", err, string(out))
	}

	for i := 1; i < len(segments); i++ {
		offset := f.duration(ctx, current) - transitionDuration
		if offset < 0 {
			offset = 0
		}

		next := filepath.Join(tempDir, fmt.Sprintf("chain_%d.mp4", i))
		filter := fmt.Sprintf("[0:v][1:v]xfade=transition=fade:duration=%.1f:offset=%.1f[outv]",
			transitionDuration, offset)

		out, err := f.run(ctx, "ffmpeg",
			"-y",
			"-i", current,
			"-i", segments[i],
			"-filter_complex", filter,
			"-map", "[outv]",
			"-c:v", "libx264", "-preset", "medium", "-crf", "23",
			next,
		)
		if err != nil {
			return fmt.Errorf("crossfading segment %d: %w, output: %s", i, err, string(out))
		}

		current = next
	}

	if err := copyFile(current, combined); err != nil {
		return fmt.Errorf("copying combined video: %w", err)
	}
	return nil
}

// duration measures a clip in seconds via ffprobe, falling back to a default
// when the probe fails.
func (f *FFmpeg) duration(ctx context.Context, path string) float64 {
	out, err := f.run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		f.logger.Warn("probing clip duration failed", "path", path, "error", err)
		return fallbackDuration
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		f.logger.Warn("parsing clip duration failed", "path", path, "error", err)
		return fallbackDuration
	}
	return d
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// Compile-time check that FFmpeg implements Assembler.
var _ Assembler = (*FFmpeg)(nil)
