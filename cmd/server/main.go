// Package main is the entrypoint for the PromoReel API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ibrahimyu/promoreel/internal/api"
	"github.com/ibrahimyu/promoreel/internal/api/handler"
	"github.com/ibrahimyu/promoreel/internal/api/response"
	"github.com/ibrahimyu/promoreel/internal/config"
	"github.com/ibrahimyu/promoreel/internal/job"
	"github.com/ibrahimyu/promoreel/internal/media"
	"github.com/ibrahimyu/promoreel/internal/metrics"
	"github.com/ibrahimyu/promoreel/internal/music"
	"github.com/ibrahimyu/promoreel/internal/narration"
	"github.com/ibrahimyu/promoreel/internal/nutrition"
	"github.com/ibrahimyu/promoreel/internal/pipeline"
	"github.com/ibrahimyu/promoreel/internal/storage"
	"github.com/ibrahimyu/promoreel/internal/synthesis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "synthesis_model", cfg.Synthesis.Model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Prepare on-disk state
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.UploadsDir, cfg.Paths.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	// 3. Restore the job registry and start its persistence loop
	registry := job.NewRegistry(filepath.Join(cfg.Paths.DataDir, "jobs.json"), cfg.Jobs.Retention, slog.Default())
	if err := registry.LoadSnapshot(); err != nil {
		return fmt.Errorf("load job snapshot: %w", err)
	}
	go registry.Run(ctx, cfg.Jobs.PersistInterval)
	slog.Info("job registry restored", "processing", registry.CountProcessing())

	// 4. Build the pipeline
	synthClient := synthesis.NewHTTPClient(cfg.Synthesis)
	narrator := narration.NewHTTPProvider(cfg.Narration)
	musicGen := music.NewYuE(cfg.Music)
	assembler := media.NewFFmpeg(slog.Default())

	segments := pipeline.NewSegmentGenerator(synthClient, narrator,
		cfg.Synthesis.Resolution, cfg.Synthesis.PollMaxAttempts, cfg.Synthesis.PollInterval, slog.Default())
	orchestrator := pipeline.NewOrchestrator(segments, musicGen, assembler,
		pipeline.NewCheckpointStore(), slog.Default())

	// 5. Create the job service and metrics
	m := metrics.New()
	svc := job.NewService(registry, orchestrator, cfg.Paths.OutputDir, m, slog.Default())

	// 6. Optional object storage for uploads
	var store storage.ObjectStore
	if cfg.HasOSS() {
		ossStore, err := storage.NewOSSStore(cfg.OSS)
		if err != nil {
			return fmt.Errorf("create oss store: %w", err)
		}
		store = ossStore
		slog.Info("object storage configured", "bucket", cfg.OSS.Bucket)
	} else {
		slog.Info("object storage not configured, serving uploads locally")
	}

	analyzer := nutrition.NewHTTPProvider(cfg.Nutrition)

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Metrics: m,

		HealthHandler:      healthHandler(exec.LookPath),
		CreateVideoHandler: handler.NewCreateVideoHandler(svc),
		GetJobHandler:      handler.NewGetJobHandler(registry),
		ListJobsHandler:    handler.NewListJobsHandler(registry),
		ResumeJobHandler:   handler.NewResumeJobHandler(svc),
		UploadHandler:      handler.NewUploadHandler(cfg.Paths.UploadsDir, storage.Resize, store),
		NutritionHandler:   handler.NewAnalyzeFoodHandler(analyzer),
		MetricsHandler: m.Handler(func(m *metrics.Metrics) {
			m.ActiveJobs.Set(float64(registry.CountProcessing()))
		}),

		OutputDir:  cfg.Paths.OutputDir,
		UploadsDir: cfg.Paths.UploadsDir,
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks that the media tools the pipeline shells out to are
// installed.
func healthHandler(lookPath func(string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"ffmpeg":  "ok",
			"ffprobe": "ok",
		}

		if _, err := lookPath("ffmpeg"); err != nil {
			checks["ffmpeg"] = "missing"
		}
		if _, err := lookPath("ffprobe"); err != nil {
			checks["ffprobe"] = "missing"
		}

		degraded := checks["ffmpeg"] != "ok" || checks["ffprobe"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more media tools missing", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status": "ok",
			"tools":  checks,
		})
	}
}
