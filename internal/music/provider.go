// Package music wraps the YuE inference toolchain, an external process that
// turns genre tags and lyrics into an audio track. Music is a degraded-mode
// feature: generation failures never fail the surrounding job.
package music

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ibrahimyu/promoreel/internal/config"
)

// ErrNotConfigured is returned when the toolchain path is not set.
var ErrNotConfigured = errors.New("music toolchain not configured")

// Generator is the interface for background music generation.
type Generator interface {
	Generate(ctx context.Context, genres, lyrics, outDir string) (string, error)
}

// RunFunc executes an external command in dir and returns its combined output.
// Injectable so tests can stub the toolchain.
type RunFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func defaultRun(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// YuE implements Generator using the YuE two-stage inference script.
type YuE struct {
	cfg config.MusicConfig
	run RunFunc
}

// NewYuE creates a new YuE music generator.
func NewYuE(cfg config.MusicConfig) *YuE {
	return &YuE{cfg: cfg, run: defaultRun}
}

// Generate writes the genre and lyric prompt files, runs the inference script,
// and converts the mixed output to mp3. Returns the mp3 path.
func (y *YuE) Generate(ctx context.Context, genres, lyrics, outDir string) (string, error) {
	if y.cfg.RepoPath == "" {
		return "", ErrNotConfigured
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating music directory: %w", err)
	}

	genreFile := filepath.Join(outDir, "genre.txt")
	lyricsFile := filepath.Join(outDir, "lyrics.txt")
	if err := os.WriteFile(genreFile, []byte(genres), 0o644); err != nil {
		return "", fmt.Errorf("writing genre file: %w", err)
	}
	if err := os.WriteFile(lyricsFile, []byte(FormatLyrics(lyrics)), 0o644); err != nil {
		return "", fmt.Errorf("writing lyrics file: %w", err)
	}

	resultDir := filepath.Join(outDir, "yue_output")
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return "", fmt.Errorf("creating result directory: %w", err)
	}

	inferenceDir := filepath.Join(y.cfg.RepoPath, "inference")
	out, err := y.run(ctx, inferenceDir, "python",
		"infer.py",
		"--cuda_idx", "0",
		"--stage1_model", y.cfg.Stage1Model,
		"--stage2_model", y.cfg.Stage2Model,
		"--genre_txt", genreFile,
		"--lyrics_txt", lyricsFile,
		"--run_n_segments", strconv.Itoa(y.cfg.RunSegments),
		"--stage2_batch_size", strconv.Itoa(y.cfg.Stage2BatchSize),
		"--output_dir", resultDir,
		"--max_new_tokens", strconv.Itoa(y.cfg.MaxNewTokens),
		"--repetition_penalty", fmt.Sprintf("%f", y.cfg.RepetitionPenalty),
	)
	if err != nil {
		return "", fmt.Errorf("running music inference: %w, output: %s", err, string(out))
	}

	wav, err := findMix(resultDir)
	if err != nil {
		return "", err
	}

	// Convert to mp3 for mux compatibility.
	mp3 := strings.TrimSuffix(wav, ".wav") + ".mp3"
	out, err = y.run(ctx, "", "ffmpeg",
		"-i", wav,
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		mp3,
	)
	if err != nil {
		return "", fmt.Errorf("converting wav to mp3: %w, output: %s", err, string(out))
	}

	return mp3, nil
}

// findMix locates the final mixed track among the toolchain's stem outputs.
func findMix(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading music output directory: %w", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), "_Mix.wav") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no mixed track found in %s", dir)
}

// FormatLyrics rewrites free-form lyrics into the [verse]/[chorus] sectioned
// form the toolchain expects. Already-sectioned lyrics pass through untouched.
func FormatLyrics(lyrics string) string {
	if strings.Contains(lyrics, "[verse]") || strings.Contains(lyrics, "[chorus]") {
		return lyrics
	}

	lines := strings.Split(lyrics, "\n")
	var b strings.Builder

	b.WriteString("[verse]\n")
	for i, line := range lines {
		if i > 0 && i%4 == 0 && i < len(lines)-1 {
			// Alternate sections every four lines.
			if (i/4)%2 == 0 {
				b.WriteString("\n\n[chorus]\n")
			} else {
				b.WriteString("\n\n[verse]\n")
			}
		}
		b.WriteString(line + "\n")
	}

	return b.String()
}

// Compile-time check that YuE implements Generator.
var _ Generator = (*YuE)(nil)
