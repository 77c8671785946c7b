// Package models contains shared data models used across the PromoReel codebase.
package models

import "time"

const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks an async video generation job. The API returns a job_id on
// POST /api/v1/videos; the client polls GET /api/v1/videos/{job_id} until
// status is completed or failed. Failed jobs stay resumable.
type Job struct {
	ID        string    `json:"job_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	VideoURL  string    `json:"video_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job reached a state the pipeline will no
// longer mutate on its own.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
