package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/chi-demo/middleware"

	"github.com/tendant/simple-media/internal/logger"
	"github.com/tendant/simple-media/pkg/mediarepo/api"
	"github.com/tendant/simple-media/pkg/mediarepo/config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info("No .env file found or error loading it, using environment", "err", err)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx := context.Background()
	if err := cfg.Ping(ctx); err != nil {
		log.Error("Content store unreachable", "store", cfg.StoreType, "err", err)
		os.Exit(1)
	}
	rt, err := cfg.Build(ctx, log)
	if err != nil {
		log.Error("Failed to build media repository", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	// a failed bootstrap leaves the taxonomy incomplete; do not serve
	if _, err := rt.Bootstrapper.Initialize(ctx); err != nil {
		log.Error("Failed to initialize content store", "err", err)
		rt.Close()
		os.Exit(1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	handler := api.NewMediaHandler(rt.Repository,
		api.WithLogger(log),
		api.WithMaxFileSize(cfg.MaxFileSize),
	)

	server.R.Route(api.BasePath, func(r chi.Router) {
		if cfg.APIKeySHA256 != "" {
			apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
				APIKeys: map[string]string{"key1": cfg.APIKeySHA256},
			})
			if err != nil {
				log.Error("Failed initialize API Key middleware", "err", err)
				os.Exit(1)
			}
			r.Use(apiKeyMiddleware)
		} else {
			log.Warn("API_KEY_SHA256 not set, media API is unauthenticated")
		}
		r.Mount("/", handler.Routes())
	})

	log.Info("Serving media repository", "store", cfg.StoreType, "binaries", cfg.BinaryStore, "environment", cfg.Environment)
	server.Run()
}
