package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimyu/promoreel/internal/narration"
	"github.com/ibrahimyu/promoreel/internal/synthesis"
)

func newSegmentGenerator(synth *fakeSynth, narrator *fakeNarrator) *SegmentGenerator {
	return NewSegmentGenerator(synth, narrator, "720P", 3, time.Millisecond, nil)
}

func TestGenerateDownloadsToNamedFile(t *testing.T) {
	synth := newFakeSynth()
	gen := newSegmentGenerator(synth, &fakeNarrator{})
	outDir := t.TempDir()

	path, err := gen.Generate(context.Background(), SegmentTask{
		Name:     SegmentOpening,
		Prompt:   "warm welcome",
		ImageURL: "img://opening",
		OutDir:   outDir,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "opening.mp4"), path)
	assert.FileExists(t, path)
	assert.Equal(t, 1, synth.submitCount("img://opening"))
}

func TestGenerateUsesNarrationForMenuItems(t *testing.T) {
	synth := newFakeSynth()
	narrator := &fakeNarrator{}
	gen := newSegmentGenerator(synth, narrator)

	_, err := gen.Generate(context.Background(), SegmentTask{
		Name:     MenuSegmentKey(0),
		Prompt:   "raw description",
		ImageURL: "img://menu-0",
		OutDir:   t.TempDir(),
		Narration: &NarrationInput{
			FoodName:        "Nasi Goreng",
			FoodDescription: "wok-fried rice",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Nasi Goreng"}, narrator.calls)
	prompts := synth.prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "Narrated: Nasi Goreng", prompts[0])
}

func TestGenerateFallsBackWhenNarrationFails(t *testing.T) {
	synth := newFakeSynth()
	narrator := &fakeNarrator{err: errors.New("llm unavailable")}
	gen := newSegmentGenerator(synth, narrator)

	_, err := gen.Generate(context.Background(), SegmentTask{
		Name:     MenuSegmentKey(0),
		ImageURL: "img://menu-0",
		OutDir:   t.TempDir(),
		Narration: &NarrationInput{
			FoodName:        "Nasi Goreng",
			FoodDescription: "wok-fried rice",
		},
	})
	require.NoError(t, err, "narration failure must not fail the segment")

	prompts := synth.prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, narration.FallbackScript("Nasi Goreng", "wok-fried rice"), prompts[0])
}

func TestGenerateFailedTaskReturnsError(t *testing.T) {
	synth := newFakeSynth()
	synth.failFor = "img://opening"
	gen := newSegmentGenerator(synth, &fakeNarrator{})

	_, err := gen.Generate(context.Background(), SegmentTask{
		Name:     SegmentOpening,
		ImageURL: "img://opening",
		OutDir:   t.TempDir(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider rejected input")
}

func TestGeneratePollTimeoutPropagates(t *testing.T) {
	synth := newFakeSynth()
	synth.timeoutFor = "img://opening"
	gen := newSegmentGenerator(synth, &fakeNarrator{})

	_, err := gen.Generate(context.Background(), SegmentTask{
		Name:     SegmentOpening,
		ImageURL: "img://opening",
		OutDir:   t.TempDir(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, synthesis.ErrPollTimeout)
}
