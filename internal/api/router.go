package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/ibrahimyu/promoreel/internal/api/middleware"
	"github.com/ibrahimyu/promoreel/internal/api/response"
	"github.com/ibrahimyu/promoreel/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Metrics *metrics.Metrics

	HealthHandler      http.HandlerFunc
	CreateVideoHandler http.HandlerFunc
	GetJobHandler      http.HandlerFunc
	ListJobsHandler    http.HandlerFunc
	ResumeJobHandler   http.HandlerFunc
	UploadHandler      http.HandlerFunc
	NutritionHandler   http.HandlerFunc
	MetricsHandler     http.Handler

	// Generated videos and uploaded images are served as static files.
	OutputDir  string
	UploadsDir string
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if deps.Metrics != nil {
		r.Use(mw.Metrics(deps.Metrics))
	}

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Post("/api/v1/videos", orNotImplemented(deps.CreateVideoHandler))
	r.Get("/api/v1/videos", orNotImplemented(deps.ListJobsHandler))
	r.Get("/api/v1/videos/{jobID}", orNotImplemented(deps.GetJobHandler))
	r.Post("/api/v1/videos/{jobID}/resume", orNotImplemented(deps.ResumeJobHandler))

	r.Post("/api/v1/uploads", orNotImplemented(deps.UploadHandler))
	r.Post("/api/v1/nutrition", orNotImplemented(deps.NutritionHandler))

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	if deps.OutputDir != "" {
		fileServer(r, "/output", deps.OutputDir)
	}
	if deps.UploadsDir != "" {
		fileServer(r, "/uploads", deps.UploadsDir)
	}

	return r
}

func fileServer(r chi.Router, prefix, dir string) {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	r.Get(prefix+"/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
