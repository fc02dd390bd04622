package internal

import (
	"context"
	"log/slog"

	"github.com/starford/scribe/internal/mcpserver"
)

// ServeMCP serves the MCP tools on stdin/stdout until the client
// disconnects. Logs keep going to stderr.
func (a *App) ServeMCP(_ context.Context) error {
	a.logger.Info("mcp: serving on stdio")
	srv := mcpserver.New(a.api, a.logger)
	if err := srv.ServeStdio(); err != nil {
		a.logger.Error("mcp: server stopped", slog.String("error", err.Error()))
		return err
	}
	return nil
}
