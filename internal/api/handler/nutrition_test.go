package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimyu/promoreel/internal/api/handler"
	"github.com/ibrahimyu/promoreel/internal/nutrition"
)

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, imageURL string) (*nutrition.Analysis, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, imageURL string) (*nutrition.Analysis, error) {
	return m.analyzeFn(ctx, imageURL)
}

func TestAnalyzeFood(t *testing.T) {
	analyzer := &mockAnalyzer{
		analyzeFn: func(_ context.Context, imageURL string) (*nutrition.Analysis, error) {
			require.Equal(t, "https://cdn/dish.jpg", imageURL)
			return &nutrition.Analysis{
				Foods: []nutrition.FoodItem{{Name: "Fried Rice", Calories: "520 kcal"}},
				Total: nutrition.Nutrition{Calories: "520 kcal"},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/nutrition",
		strings.NewReader(`{"image_url": "https://cdn/dish.jpg"}`))
	w := httptest.NewRecorder()
	handler.NewAnalyzeFoodHandler(analyzer)(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	foods := data["foods"].([]any)
	require.Len(t, foods, 1)
	assert.Equal(t, "Fried Rice", foods[0].(map[string]any)["name"])
}

func TestAnalyzeFoodMissingURL(t *testing.T) {
	analyzer := &mockAnalyzer{
		analyzeFn: func(context.Context, string) (*nutrition.Analysis, error) {
			t.Fatal("Analyze must not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/nutrition", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handler.NewAnalyzeFoodHandler(analyzer)(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeFoodProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"empty answer", nutrition.ErrNoContent, "ANALYSIS_EMPTY"},
		{"provider down", errors.New("connection refused"), "ANALYSIS_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &mockAnalyzer{
				analyzeFn: func(context.Context, string) (*nutrition.Analysis, error) {
					return nil, tt.err
				},
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/nutrition",
				strings.NewReader(`{"image_url": "https://cdn/dish.jpg"}`))
			w := httptest.NewRecorder()
			handler.NewAnalyzeFoodHandler(analyzer)(w, req)

			assert.Equal(t, http.StatusBadGateway, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, tt.wantCode, errObj["code"])
		})
	}
}
