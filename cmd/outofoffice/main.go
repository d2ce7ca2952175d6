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

	"github.com/dukerupert/outofoffice/internal/config"
	"github.com/dukerupert/outofoffice/internal/database"
	"github.com/dukerupert/outofoffice/internal/email"
	"github.com/dukerupert/outofoffice/internal/logging"
	"github.com/dukerupert/outofoffice/internal/metrics"
	"github.com/dukerupert/outofoffice/internal/outofoffice"
	"github.com/dukerupert/outofoffice/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(context.Background(), cfg, os.Args[1:], logger); err != nil {
		logger.Error("outofoffice failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, logger *slog.Logger) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(ctx, cfg, logger)
	case "user":
		return userCommand(ctx, cfg, args, os.Stdout)
	case "session":
		return sessionCommand(ctx, cfg, args, os.Stdout)
	default:
		return fmt.Errorf("unknown command %q (want serve, user or session)", cmd)
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	metrics.Register()

	var notifier outofoffice.Notifier
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom, cfg.BaseURL)
	if emailClient.Configured() {
		notifier = emailClient
	} else {
		logger.Warn("postmark token not set, delegate notifications disabled")
	}

	srv := server.New(db, notifier, server.Options{
		Location:       loc,
		RateLimit:      cfg.RateLimit,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var adminServer *http.Server
	if cfg.AdminAddr != "" {
		adminServer = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           srv.AdminRouter(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx, srv, cfg.CleanupInterval, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("out of office service starting", "addr", cfg.Addr, "timezone", loc.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if adminServer != nil {
		go func() {
			logger.Info("admin listener starting", "addr", cfg.AdminAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin shutdown error", "error", err)
		}
	}
	return serveErr
}

func cleanupLoop(ctx context.Context, srv *server.Server, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := srv.SessionStore().DeleteExpired(ctx); err != nil {
				logger.Error("cleanup expired sessions", "error", err)
			} else if n > 0 {
				logger.Info("cleaned up expired sessions", "count", n)
			}
			srv.RateLimiter().Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
