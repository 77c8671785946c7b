package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ibrahimyu/promoreel/internal/api/response"
	"github.com/ibrahimyu/promoreel/internal/nutrition"
)

// NewAnalyzeFoodHandler returns the handler for POST /api/v1/nutrition.
func NewAnalyzeFoodHandler(analyzer nutrition.Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ImageURL string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.ImageURL == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "image_url is required", nil)
			return
		}

		result, err := analyzer.Analyze(r.Context(), req.ImageURL)
		if err != nil {
			switch {
			case errors.Is(err, nutrition.ErrNoContent):
				response.Error(w, http.StatusBadGateway, "ANALYSIS_EMPTY",
					"The vision model returned no nutrition content", nil)
			default:
				response.Error(w, http.StatusBadGateway, "ANALYSIS_FAILED",
					"Food analysis failed", nil)
			}
			return
		}

		response.JSON(w, result)
	}
}
