package handler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ibrahimyu/promoreel/internal/api/response"
	"github.com/ibrahimyu/promoreel/internal/storage"
)

const maxUploadSize = 20 << 20 // 20 MiB

// ImageProcessor prepares an uploaded image for the synthesis provider.
type ImageProcessor func(path string) (string, error)

// NewUploadHandler returns the handler for POST /api/v1/uploads. The image is
// resized and published to object storage; without a configured store the
// file is served from the local /uploads path instead.
func NewUploadHandler(uploadsDir string, process ImageProcessor, store storage.ObjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

		file, header, err := r.FormFile("image")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No image file uploaded", nil)
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "File must be an image", nil)
			return
		}

		ext := filepath.Ext(header.Filename)
		if ext == "" {
			ext = ".jpg"
		}
		localPath := filepath.Join(uploadsDir, uuid.NewString()+ext)

		if err := saveUpload(file, localPath); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save uploaded file", nil)
			return
		}

		resizedPath, err := process(localPath)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "File is not a valid image", nil)
			return
		}

		if store == nil {
			response.Created(w, uploadResponse{ImageURL: "/uploads/" + filepath.Base(resizedPath)})
			return
		}

		url, err := store.Upload(resizedPath)
		if err != nil {
			response.Error(w, http.StatusBadGateway, "STORAGE_UNAVAILABLE", "Failed to publish image", nil)
			return
		}

		response.Created(w, uploadResponse{ImageURL: url})
	}
}

type uploadResponse struct {
	ImageURL string `json:"image_url"`
}

func saveUpload(src io.Reader, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
