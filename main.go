package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"smart-coop/internal/app"
	"smart-coop/internal/config"
	"smart-coop/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config.yaml (default: ./config.yaml if present)")
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before the config")
	runJob := pflag.String("run-job", "", "run one maintenance job (token-sweep, password-change-sweep) and exit")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("load env file", "path", *envFile, "error", err)
	}

	// load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Error("init app", "error", err)
		os.Exit(1)
	}

	if *runJob != "" {
		err := a.RunJob(ctx, *runJob)
		shutdown(a, cfg, log)
		if err != nil {
			log.Error("run job", "job", *runJob, "error", err)
			os.Exit(1)
		}
		return
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("run server", "error", err)
			shutdown(a, cfg, log)
			os.Exit(1)
		}
	}
	shutdown(a, cfg, log)
}

func shutdown(a *app.App, cfg *config.Config, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
