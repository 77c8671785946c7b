package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Resize scales the image to the synthesis provider's expected 1280x720
// frame and writes it next to the input as a JPEG. The resized path is
// returned.
func Resize(inputPath string) (string, error) {
	src, err := imaging.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}

	resized := imaging.Resize(src, 1280, 720, imaging.Lanczos)

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(filepath.Dir(inputPath), "resized_"+base+".jpg")

	if err := imaging.Save(resized, outputPath, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("saving resized image: %w", err)
	}
	return outputPath, nil
}
