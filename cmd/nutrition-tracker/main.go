// cmd/nutrition-tracker/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"nutrition-tracker/internal/config"
	"nutrition-tracker/internal/server"
)

var (
	configPath  = flag.String("config", "", "Path to YAML config file")
	port        = flag.Int("port", 0, "Port for HTTP transport (overrides config)")
	host        = flag.String("host", "", "Host address (overrides config)")
	dbPath      = flag.String("db-path", "", "Database path (overrides config)")
	mirrorPath  = flag.String("mirror-path", "", "Mirror workbook path (overrides config)")
	showVersion = flag.Bool("version", false, "Show version")
)

const version = "1.0.0"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("nutrition-tracker version " + version)
		os.Exit(0)
	}

	// Optional .env for local development; ignore if absent.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Flags win over the file.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *mirrorPath != "" {
		cfg.Mirror.Path = *mirrorPath
	}

	setupLogging(cfg.Logging)

	srv, err := server.NewTrackerServer(&server.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		DBPath:        cfg.Database.Path,
		MirrorPath:    cfg.Mirror.Path,
		AnalyzerURL:   cfg.Analyzer.URL,
		AnalyzerModel: cfg.Analyzer.Model,
		Debounce:      cfg.Ingest.Debounce,
		DedupWindow:   cfg.Ingest.DedupWindow,
	})
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-sigCh:
		slog.Info("received shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	slog.Info("shutting down")
	cancel()
	if err := srv.Stop(); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
