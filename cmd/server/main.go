// Package main is the entry point for the Obsidian API server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (defaults, optional YAML file, environment)
//  2. Create the logger
//  3. Build the server and block until it shuts down
//
// All actual logic lives in internal/server, internal/service and friends.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/obsidian/internal/config"
	"github.com/sakif/obsidian/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet; fall back to a plain one.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("invalid configuration",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Validate already rejected unknown levels.
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// os.MkdirAll is `mkdir -p`. The upload directory is created by the
	// storage layer; the database directory has to exist before sql.Open.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger, server.Options{})
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the database on return.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
