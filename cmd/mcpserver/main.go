package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tendant/simple-media/internal/logger"
	"github.com/tendant/simple-media/internal/mcp"
	"github.com/tendant/simple-media/pkg/mediarepo/config"
)

func main() {
	var mode = flag.String("mode", "stdio", "Server mode: 'stdio', 'sse', or 'http'")
	var baseURL = flag.String("base-url", "", "Public base URL in sse mode (default: http://localhost:<port>)")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		slog.Info("No .env file found or error loading it, using environment", "err", err)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	// stdout carries the stdio transport
	log := logger.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx := context.Background()
	rt, err := cfg.Build(ctx, log)
	if err != nil {
		log.Error("Failed to build media repository", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	if _, err := rt.Bootstrapper.Initialize(ctx); err != nil {
		log.Error("Failed to initialize content store", "err", err)
		rt.Close()
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"Media Repository Mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	mcp.NewHandler(rt.Repository, log).RegisterTools(s)

	addr := fmt.Sprintf(":%s", cfg.Port)
	switch *mode {
	case "sse":
		url := *baseURL
		if url == "" {
			url = "http://localhost" + addr
		}
		sseServer := server.NewSSEServer(s, server.WithBaseURL(url))
		log.Info("Starting SSE server", "base_url", url)
		if err := sseServer.Start(addr); err != nil {
			log.Error("Failed to start SSE server", "err", err)
			rt.Close()
			os.Exit(1)
		}
	case "http":
		httpServer := server.NewStreamableHTTPServer(s)
		log.Info("HTTP server listening", "port", cfg.Port)
		if err := httpServer.Start(addr); err != nil {
			log.Error("Server error", "err", err)
			rt.Close()
			os.Exit(1)
		}
	default:
		log.Info("Starting in stdio mode")
		if err := server.ServeStdio(s); err != nil {
			log.Error("Failed to start stdio server", "err", err)
			rt.Close()
			os.Exit(1)
		}
	}
}
