// Package handler contains the HTTP handlers for the video generation API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ibrahimyu/promoreel/internal/api/response"
	"github.com/ibrahimyu/promoreel/internal/job"
	"github.com/ibrahimyu/promoreel/pkg/models"
)

// VideoService defines the job operations the video handlers depend on.
type VideoService interface {
	Start(input *models.VideoInput) (*models.Job, error)
	Resume(jobID string) (*models.Job, error)
}

// JobReader defines the read-side job operations.
type JobReader interface {
	Get(id string) (*models.Job, error)
	List() []*models.Job
}

// NewCreateVideoHandler returns the handler for POST /api/v1/videos. The job
// runs in the background; the client polls the returned job_id.
func NewCreateVideoHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input models.VideoInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if err := input.Validate(); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}

		j, err := svc.Start(&input)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not start video generation", nil)
			return
		}

		response.Accepted(w, j)
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/videos/{jobID}.
func NewGetJobHandler(jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")

		j, err := jobs.Get(id)
		if err != nil {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No such job", nil)
			return
		}

		response.JSON(w, j)
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/videos.
func NewListJobsHandler(jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := jobs.List()
		response.Collection(w, all, response.CollectionMeta{Total: len(all)})
	}
}

// NewResumeJobHandler returns the handler for POST /api/v1/videos/{jobID}/resume.
// Only failed jobs may resume; they pick up from their last checkpoint.
func NewResumeJobHandler(svc VideoService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")

		j, err := svc.Resume(id)
		if err != nil {
			switch {
			case errors.Is(err, job.ErrJobNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No such job", nil)
			case errors.Is(err, job.ErrNotResumable):
				response.Error(w, http.StatusConflict, "JOB_NOT_RESUMABLE",
					"Only failed jobs can be resumed", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Could not resume job", nil)
			}
			return
		}

		response.Accepted(w, j)
	}
}
