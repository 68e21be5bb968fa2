package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/swaasthya/saathi/internal/app"
	"github.com/swaasthya/saathi/internal/config"
)

var version = "dev"

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file merged into the environment before loading config")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := config.LoadEnvFile(*envFile, pflag.CommandLine.Changed("env-file")); err != nil {
		fmt.Fprintf(os.Stderr, "env file error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := config.SetupLogging(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		logger.Error("saathi exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	built, err := app.Build(runCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			slog.Warn("cleanup failed", "error", err)
		}
	}()
	slog.Info("providers resolved",
		"mode", built.Providers.Mode,
		"detail", built.Providers.Detail,
		"audio_backend", built.Providers.AudioBackend,
		"session_store", built.Providers.SessionStore,
		"version", version,
	)
	built.StartBackground(runCtx)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           built.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.BindAddr, "public_base_url", cfg.PublicBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}
	// In-flight events still get to send their replies.
	if err := built.Dispatcher.Shutdown(shutdownCtx); err != nil {
		slog.Warn("dispatcher drain incomplete", "error", err)
	}
	runCancel()

	slog.Info("shutdown complete")
	return nil
}
