package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	api "locum-backend/cmd/api"
	"locum-backend/internal/app"
	"locum-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Runtime-mutable extractor settings, read by the extractor on every call
	api.InitRuntimeConfig(cfg.AIProvider, cfg.OllamaBaseURL, cfg.OllamaModel)

	application, err := app.New(ctx, cfg, app.Options{
		GetOllamaBaseURL: api.GetRuntimeOllamaBaseURL,
		GetOllamaModel:   api.GetRuntimeOllamaModel,
	})
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	// Pub/Sub pull subscriber, the pull-mode twin of /api/gmail/push
	application.StartPushListener(ctx)
	application.StartScheduler(ctx)

	handler := api.NewHandler(application)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
