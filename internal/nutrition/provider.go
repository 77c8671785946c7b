// Package nutrition analyzes food photos with a multimodal vision model and
// extracts structured nutrition facts from its answer.
package nutrition

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

// ErrNoContent is returned when the model answers without any usable text.
var ErrNoContent = errors.New("nutrition: no content in model response")

const analysisPrompt = "What is the nutritional content with accurate numbers in this picture and what foods are in it? Output nutrition only."

// Analysis is the structured result of analyzing one food photo.
type Analysis struct {
	Foods       []FoodItem `json:"foods"`
	Total       Nutrition  `json:"total_nutrition"`
	RawResponse string     `json:"raw_response"`
}

// FoodItem is one recognized food and its nutrition facts.
type FoodItem struct {
	Name     string `json:"name"`
	Serving  string `json:"serving,omitempty"`
	Calories string `json:"calories,omitempty"`
	Fat      string `json:"fat,omitempty"`
	Protein  string `json:"protein,omitempty"`
	Carbs    string `json:"carbs,omitempty"`
	Fiber    string `json:"fiber,omitempty"`
	Sodium   string `json:"sodium,omitempty"`
}

// Nutrition holds aggregate values across all recognized foods.
type Nutrition struct {
	Calories string `json:"calories,omitempty"`
	Fat      string `json:"fat,omitempty"`
	Protein  string `json:"protein,omitempty"`
	Carbs    string `json:"carbs,omitempty"`
	Fiber    string `json:"fiber,omitempty"`
	Sodium   string `json:"sodium,omitempty"`
}

// Analyzer defines the interface handlers depend on.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (*Analysis, error)
}

// HTTPProvider calls the DashScope multimodal generation endpoint.
type HTTPProvider struct {
	cfg    config.NutritionConfig
	client *http.Client
}

var _ Analyzer = (*HTTPProvider)(nil)

// NewHTTPProvider creates a provider from configuration.
func NewHTTPProvider(cfg config.NutritionConfig) *HTTPProvider {
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type vlRequest struct {
	Model      string       `json:"model"`
	Input      vlInput      `json:"input"`
	Parameters vlParameters `json:"parameters"`
}

type vlInput struct {
	Messages []vlMessage `json:"messages"`
}

type vlMessage struct {
	Role    string      `json:"role"`
	Content []vlContent `json:"content"`
}

type vlContent struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type vlParameters struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type vlResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []vlContent `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Analyze sends the photo to the vision model and parses the nutrition facts
// out of its free-text answer.
func (p *HTTPProvider) Analyze(ctx context.Context, imageURL string) (*Analysis, error) {
	reqBody := vlRequest{
		Model: p.cfg.Model,
		Input: vlInput{
			Messages: []vlMessage{{
				Role: "user",
				Content: []vlContent{
					{Image: imageURL},
					{Text: analysisPrompt},
				},
			}},
		},
		Parameters: vlParameters{Temperature: 0.3, TopP: 0.8},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling vision model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("vision model returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed vlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding analysis response: %w", err)
	}
	if parsed.Code != "" && parsed.Code != "Success" && parsed.Code != "0" {
		return nil, fmt.Errorf("vision model error %s: %s", parsed.Code, parsed.Message)
	}
	if len(parsed.Output.Choices) == 0 {
		return nil, ErrNoContent
	}

	var text strings.Builder
	for _, c := range parsed.Output.Choices[0].Message.Content {
		text.WriteString(c.Text)
	}
	raw := text.String()
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNoContent
	}

	result := ParseFoodAnalysis(raw)
	result.RawResponse = raw
	return result, nil
}

// ParseFoodAnalysis extracts foods and totals from the model's markdown-ish
// answer. Models vary their formatting, so parsing is tolerant: headings
// introduce food items, "nutrient: value" lines fill them in, and a heading
// containing "Total" switches to the aggregate section.
func ParseFoodAnalysis(rawText string) *Analysis {
	result := &Analysis{Foods: make([]FoodItem, 0)}

	clean := strings.ReplaceAll(rawText, "\\n", "\n")
	clean = strings.ReplaceAll(clean, "\\*", "*")

	var current *FoodItem
	var inTotal bool

	flush := func() {
		if current != nil && !inTotal {
			result.Foods = append(result.Foods, *current)
		}
	}

	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "Nutritional Content") {
			continue
		}

		if isFoodHeading(line) {
			flush()
			name, serving := splitFoodHeading(line)
			current = &FoodItem{Name: name, Serving: serving}
			inTotal = strings.Contains(strings.ToLower(name), "total")
			continue
		}

		if current == nil || !strings.Contains(line, ":") {
			continue
		}

		nutrient, value, ok := splitNutrientLine(line)
		if !ok {
			continue
		}
		assignNutrient(result, current, inTotal, nutrient, value)
	}
	flush()

	return result
}

// isFoodHeading reports whether the line introduces a new food item rather
// than a nutrient value.
func isFoodHeading(line string) bool {
	hasMarker := strings.HasPrefix(line, "**") ||
		strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "- ") ||
		strings.HasPrefix(line, "1. ")
	if !hasMarker {
		return false
	}
	// Nutrient lines look like "- Protein: 12g"; food headings carry a
	// serving or end the name with a colon.
	lower := strings.ToLower(trimMarkers(line))
	for _, n := range []string{"calor", "fat", "protein", "carb", "fiber", "sodium"} {
		if strings.HasPrefix(lower, n) {
			return false
		}
	}
	return strings.Contains(line, ":") || strings.Contains(line, "(") || strings.Contains(line, "serving")
}

func splitFoodHeading(line string) (name, serving string) {
	clean := trimMarkers(line)

	if i := strings.Index(clean, "("); i >= 0 {
		name = strings.TrimSpace(clean[:i])
		serving = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(clean[i+1:], "):"), ")"))
	} else {
		name = clean
	}
	if i := strings.Index(name, ":"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name, serving
}

func splitNutrientLine(line string) (nutrient, value string, ok bool) {
	clean := trimMarkers(line)
	parts := strings.SplitN(clean, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	nutrient = strings.ToLower(strings.TrimSpace(strings.TrimLeft(parts[0], "-• ")))
	value = strings.TrimSpace(parts[1])
	return nutrient, value, value != ""
}

func trimMarkers(line string) string {
	clean := strings.TrimPrefix(line, "- ")
	clean = strings.TrimPrefix(clean, "* ")
	clean = strings.TrimPrefix(clean, "1. ")
	clean = strings.TrimPrefix(clean, "**")
	clean = strings.TrimSuffix(clean, "**")
	return strings.TrimSpace(clean)
}

func assignNutrient(result *Analysis, current *FoodItem, inTotal bool, nutrient, value string) {
	set := func(food *string, total *string) {
		if inTotal {
			*total = value
		} else {
			*food = value
		}
	}
	switch {
	case strings.Contains(nutrient, "calor"):
		set(&current.Calories, &result.Total.Calories)
	case strings.Contains(nutrient, "fat"):
		set(&current.Fat, &result.Total.Fat)
	case strings.Contains(nutrient, "protein"):
		set(&current.Protein, &result.Total.Protein)
	case strings.Contains(nutrient, "carb"):
		set(&current.Carbs, &result.Total.Carbs)
	case strings.Contains(nutrient, "fiber"):
		set(&current.Fiber, &result.Total.Fiber)
	case strings.Contains(nutrient, "sodium"):
		set(&current.Sodium, &result.Total.Sodium)
	}
}
