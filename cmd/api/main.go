package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/twosmallonions/recipes/backend/config"
	"github.com/twosmallonions/recipes/backend/internal/api"
	"github.com/twosmallonions/recipes/backend/internal/database"
	"github.com/twosmallonions/recipes/backend/internal/logger"
	"github.com/twosmallonions/recipes/backend/internal/router"
	"github.com/twosmallonions/recipes/backend/internal/server"
	"github.com/twosmallonions/recipes/backend/internal/service"
	"github.com/twosmallonions/recipes/backend/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recipes api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabaseURL, database.Options{
		Logger:     log,
		Verbose:    !cfg.IsProduction(),
		MaxRetries: 5,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}()

	var files fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		files = os.DirFS(cfg.MigrationsDir)
	}
	if err := database.RunMigrations(ctx, db, files, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	verifier, err := service.NewJWKSVerifier(ctx, cfg, log)
	if err != nil {
		return err
	}

	handler := router.SetupRouter(router.Options{
		Logger:         log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TokenValidator: verifier,
		Recipes:        api.NewRecipeHandler(service.NewRecipeService(db.DB, log)),
		Health:         api.NewHealthHandler(db, log),
	})

	srv := server.New(cfg.HTTPAddr, handler, log)
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Block until we receive a signal or error
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	log.Info("server stopped")
	return nil
}
