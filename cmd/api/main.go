// main.go - The entry point and router setup.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bosocmputer/ocr_translate/configs"
	"github.com/bosocmputer/ocr_translate/internal/ai"
	"github.com/bosocmputer/ocr_translate/internal/api"
	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/document"
	"github.com/bosocmputer/ocr_translate/internal/ratelimit"
	"github.com/bosocmputer/ocr_translate/internal/render"
	"github.com/bosocmputer/ocr_translate/internal/storage"
	"github.com/bosocmputer/ocr_translate/internal/workflow"
	"github.com/gin-gonic/gin"
)

func main() {
	log := common.Logger()

	// Step 0: Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	common.ConfigureLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Step 1: Wire the form actions
	preparer := document.NewPreparer(document.Options{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		Preprocess:        cfg.EnableImagePreprocessing,
		MaxImageDimension: cfg.MaxImageDimension,
	})
	limiter := ratelimit.NewRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefill)
	runner := workflow.NewRunner(preparer, ai.NewFactory(cfg), limiter, cfg.TranslateTarget)

	sessions := storage.NewSessionCache(cfg.SessionTTL)
	defer sessions.Close()

	// Step 2: Initialize the Gin router
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(), api.CORSMiddleware(cfg.AllowedOrigins))
	api.NewHandler(cfg, runner, sessions, render.NewRenderer()).Register(router)

	// Step 3: Setup HTTP server. No write timeout: OCR and chat calls are
	// bounded by the request context only.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Infof("Starting server on :%s (provider: %s)", cfg.Port, cfg.OCRProvider)
		log.Info("Endpoints:")
		log.Info("  GET  /")
		log.Info("  POST /api-key, /process, /refine, /translate, /summarize, /session/reset")
		log.Info("  GET  /health")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
