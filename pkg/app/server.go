package app

import (
	"context"

	"github.com/opsipintar/catalog/internal/server"
)

// Serve builds the handler and runs the HTTP server until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	return server.Start(ctx, a.Handler())
}
