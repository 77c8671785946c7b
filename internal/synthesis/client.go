// Package synthesis talks to the asynchronous image-to-video generation API.
// A submission returns a task id; the task is then polled until it reaches a
// terminal state (SUCCEEDED or FAILED) and the resulting file is downloaded.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ibrahimyu/promoreel/internal/config"
)

// Task states reported by the provider. Anything outside the terminal pair
// (SUCCEEDED, FAILED) keeps the poll loop going.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Sentinel errors for synthesis failures.
var (
	ErrPollTimeout = errors.New("synthesis task polling timed out")
	ErrSubmit      = errors.New("synthesis submit failed")
)

// Client is the interface for the remote video synthesis provider.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Status(ctx context.Context, taskID string) (*TaskResult, error)
	PollUntilDone(ctx context.Context, taskID string, maxAttempts int, interval time.Duration) (*TaskResult, error)
	Download(ctx context.Context, url, dest string) error
}

// SubmitRequest defines parameters for a video synthesis task.
type SubmitRequest struct {
	Prompt       string
	ImageURL     string
	Resolution   string
	PromptExtend bool
}

// TaskResult is the provider's view of a task.
type TaskResult struct {
	TaskID   string
	Status   string
	VideoURL string
	Message  string
}

// Terminal reports whether the task will make no further transitions.
func (r *TaskResult) Terminal() bool {
	return r.Status == StatusSucceeded || r.Status == StatusFailed
}

// HTTPClient implements Client against the DashScope-style async HTTP API.
type HTTPClient struct {
	cfg    config.SynthesisConfig
	client *http.Client
}

// NewHTTPClient creates a new synthesis HTTP client.
func NewHTTPClient(cfg config.SynthesisConfig) *HTTPClient {
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	resolution := req.Resolution
	if resolution == "" {
		resolution = c.cfg.Resolution
	}

	body := submitRequest{
		Model: c.cfg.Model,
		Input: submitInput{
			Prompt:   req.Prompt,
			ImageURL: req.ImageURL,
		},
		Parameters: submitParameters{
			Resolution:   resolution,
			PromptExtend: req.PromptExtend,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-DashScope-Async", "enable")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmit, resp.StatusCode, string(b))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}
	if sr.Output.TaskID == "" {
		return "", fmt.Errorf("%w: %s %s", ErrSubmit, sr.Code, sr.Message)
	}

	return sr.Output.TaskID, nil
}

func (c *HTTPClient) Status(ctx context.Context, taskID string) (*TaskResult, error) {
	u := fmt.Sprintf("%s/%s", c.cfg.TasksURL, taskID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("checking task status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("task status request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var tr taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decoding task status: %w", err)
	}

	return &TaskResult{
		TaskID:   tr.Output.TaskID,
		Status:   tr.Output.TaskStatus,
		VideoURL: tr.Output.VideoURL,
		Message:  tr.Output.Message,
	}, nil
}

// PollUntilDone polls the task at a fixed interval until it reaches a terminal
// state. Exceeding maxAttempts without a terminal state returns ErrPollTimeout;
// a stuck remote task must neither hang the pipeline nor pass as success.
func (c *HTTPClient) PollUntilDone(ctx context.Context, taskID string, maxAttempts int, interval time.Duration) (*TaskResult, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := c.Status(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if result.Terminal() {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, maxAttempts)
}

// Download fetches a generated file to dest, creating parent directories as
// needed.
func (c *HTTPClient) Download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// --- wire types ---

type submitRequest struct {
	Model      string           `json:"model"`
	Input      submitInput      `json:"input"`
	Parameters submitParameters `json:"parameters"`
}

type submitInput struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"img_url"`
}

type submitParameters struct {
	Resolution   string `json:"resolution"`
	PromptExtend bool   `json:"prompt_extend"`
}

type submitResponse struct {
	Output struct {
		TaskStatus string `json:"task_status"`
		TaskID     string `json:"task_id"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

type taskResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		VideoURL   string `json:"video_url,omitempty"`
		Code       string `json:"code,omitempty"`
		Message    string `json:"message,omitempty"`
	} `json:"output"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
