// Package narration generates spoken-style scripts for menu item clips via a
// chat-completions API. Narration is best-effort: callers fall back to
// FallbackScript when the provider fails.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ibrahimyu/promoreel/internal/config"
)

// ErrNoAPIKey is returned when the provider is constructed without credentials.
var ErrNoAPIKey = errors.New("narration api key not configured")

const systemPrompt = "You are an expert copywriter specializing in food videos. " +
	"Create concise, mouthwatering narrations that highlight the best qualities of dishes."

// Request holds the parameters for one narration.
type Request struct {
	FoodName        string
	FoodDescription string
	Length          string // "short", "medium", or "long"
	Tone            string // "enthusiastic", "professional", ...
}

// Provider is the interface for narration generation.
type Provider interface {
	Narrate(ctx context.Context, req Request) (string, error)
}

// HTTPProvider implements Provider against an OpenAI-compatible API.
type HTTPProvider struct {
	cfg    config.NarrationConfig
	client *http.Client
}

// NewHTTPProvider creates a new narration provider.
func NewHTTPProvider(cfg config.NarrationConfig) *HTTPProvider {
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *HTTPProvider) Narrate(ctx context.Context, req Request) (string, error) {
	if p.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}

	if req.Length == "" {
		req.Length = "short"
	}
	if req.Tone == "" {
		req.Tone = "enthusiastic"
	}

	prompt := fmt.Sprintf(`Create a %s, %s narration for a food video about %q.
The narration should highlight these details: %s.
The narration should be engaging and suitable for a restaurant promotional video.
Keep it concise and focused on making the viewer hungry.`,
		req.Length, req.Tone, req.FoodName, req.FoodDescription)

	body := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   150,
		Temperature: 0.7,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling narration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building narration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling narration provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("narration request failed with status %d: %s", resp.StatusCode, string(b))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding narration response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("narration response contained no choices")
	}

	script := strings.TrimSpace(cr.Choices[0].Message.Content)
	script = strings.Trim(script, "\"")
	if script == "" {
		return "", fmt.Errorf("narration response was empty")
	}

	return script, nil
}

// FallbackScript builds the deterministic template used when the provider
// fails. A missing narration never fails a segment.
func FallbackScript(foodName, foodDescription string) string {
	return fmt.Sprintf("Try our delicious %s. %s", foodName, foodDescription)
}

// --- wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Compile-time check that HTTPProvider implements Provider.
var _ Provider = (*HTTPProvider)(nil)
