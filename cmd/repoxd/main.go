package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/contentrepo/contentrepo/pkg/contentrepo/api"
	"github.com/contentrepo/contentrepo/pkg/contentrepo/config"
)

type envConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	StorageURL  string `env:"STORAGE_URL" env-default:"memory://"`
	JWTSecret   string `env:"JWT_SECRET"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
}

func main() {
	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		slog.Error("failed to read environment", "error", err)
		os.Exit(1)
	}

	logger := newLogger(env.LogLevel, env.Environment)
	slog.SetDefault(logger)

	cfg, err := config.Load(
		config.WithPort(env.Port),
		config.WithEnvironment(env.Environment),
		config.WithStorageURL(env.StorageURL),
		config.WithJWTSecret(env.JWTSecret),
	)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	svc, err := cfg.BuildService()
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(svc,
		api.WithLogger(logger),
		api.WithJWTSecret(cfg.JWTSecret),
	)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: server.Routes(),
	}

	go func() {
		logger.Info("content repository server starting",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"default_storage", cfg.DefaultStorageBackend,
			"auth", cfg.JWTSecret != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func newLogger(level, environment string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if environment == "development" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
