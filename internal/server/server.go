// Package server boots the process-wide connections and runs the HTTP
// listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/opsipintar/catalog/config"
	"github.com/opsipintar/catalog/pkg/cache"
	"github.com/opsipintar/catalog/pkg/database"
	"github.com/opsipintar/catalog/pkg/logger"
	"github.com/opsipintar/catalog/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// Boot loads config and connects the database and the storage disk. Redis
// is optional: when it is down the catalog runs uncached.
func Boot(ctx context.Context) error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := database.Connect(ctx); err != nil {
		return err
	}
	if err := storage.Connect(ctx); err != nil {
		return err
	}
	if err := cache.Connect(ctx); err != nil {
		logger.Warn("cache disabled", "error", err)
	}
	return nil
}

// Start serves handler on APP_PORT until ctx is cancelled, then drains
// in-flight requests.
func Start(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Autofill waits up to a minute on the scraper.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr, "env", config.AppEnv())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
