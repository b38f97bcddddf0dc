package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/auth"
	"github.com/ProfDrJones/journals/internal/config"
	"github.com/ProfDrJones/journals/internal/editor"
	httpserver "github.com/ProfDrJones/journals/internal/http"
	"github.com/ProfDrJones/journals/internal/ical"
	applog "github.com/ProfDrJones/journals/internal/log"
	"github.com/ProfDrJones/journals/internal/settings"
	"github.com/ProfDrJones/journals/internal/store"
)

func main() {
	issueFor := flag.String("issue-app-password", "", "create an app password for this user, print it and exit")
	label := flag.String("label", "cli", "label of the issued app password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := applog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *issueFor, *label); err != nil {
		logger.Error("journals server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, issueFor, label string) error {
	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return fmt.Errorf("create db pool: %w", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	stor := store.New(pool)
	authService := auth.NewService(stor.Users, stor.AppPasswords, stor, logger.Named("auth"))

	if issueFor != "" {
		token, err := authService.IssueAppPassword(ctx, issueFor, label)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	locs := editor.SystemLocations{}
	settingsService, err := settings.NewService(stor.Settings, stor.Calendars, locs, cfg.Defaults, cfg.DefaultTimezone, logger.Named("settings"))
	if err != nil {
		return fmt.Errorf("initialize settings: %w", err)
	}
	engine := ical.NewEngine(locs, logger.Named("ical"))
	api := httpserver.NewAPI(stor, settingsService, engine, locs, logger.Named("editor"))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpserver.NewRouter(ctx, cfg, stor, authService, api, logger.Named("http")),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr), zap.String("base_url", cfg.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
