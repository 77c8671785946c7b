package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimyu/promoreel/internal/config"
)

func newTestClient(baseURL, tasksURL string) *HTTPClient {
	return NewHTTPClient(config.SynthesisConfig{
		APIKey:     "sk-test",
		BaseURL:    baseURL,
		TasksURL:   tasksURL,
		Model:      "wan2.1-i2v-turbo",
		Resolution: "720P",
	})
}

func TestSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "enable", r.Header.Get("X-DashScope-Async"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wan2.1-i2v-turbo", body["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"output":     map[string]any{"task_id": "task-123", "task_status": "PENDING"},
			"request_id": "req-1",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	taskID, err := c.Submit(context.Background(), SubmitRequest{
		Prompt:       "sizzling satay on a grill",
		ImageURL:     "https://cdn.example.com/satay.jpg",
		PromptExtend: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "task-123", taskID)
}

func TestSubmitAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code":    "InvalidParameter",
			"message": "img_url is not reachable",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.Submit(context.Background(), SubmitRequest{Prompt: "x", ImageURL: "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmit)
}

func TestPollUntilDoneSucceedsAfterPending(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		status := StatusRunning
		videoURL := ""
		if n >= 3 {
			status = StatusSucceeded
			videoURL = "https://cdn.example.com/out.mp4"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{
				"task_id":     "task-123",
				"task_status": status,
				"video_url":   videoURL,
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	result, err := c.PollUntilDone(context.Background(), "task-123", 10, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, "https://cdn.example.com/out.mp4", result.VideoURL)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPollUntilDoneReturnsFailedTerminalState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{
				"task_id":     "task-123",
				"task_status": StatusFailed,
				"message":     "content policy violation",
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	result, err := c.PollUntilDone(context.Background(), "task-123", 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "content policy violation", result.Message)
}

func TestPollUntilDoneTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"task_id": "task-123", "task_status": StatusRunning},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.PollUntilDone(context.Background(), "task-123", 3, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestPollUntilDoneRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{"task_id": "task-123", "task_status": StatusPending},
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.PollUntilDone(ctx, "task-123", 1000, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "fake mp4 bytes")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "segments", "opening.mp4")
	c := newTestClient(srv.URL, srv.URL)
	require.NoError(t, c.Download(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fake mp4 bytes", string(data))
}

func TestDownloadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	err := c.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "x.mp4"))
	require.Error(t, err)
}
