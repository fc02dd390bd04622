package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/scribe/internal/editor"
	"github.com/starford/scribe/internal/objecturl"
	"github.com/starford/scribe/internal/preview"
	"github.com/starford/scribe/internal/sse"
	"github.com/starford/scribe/internal/workspace"
)

const shutdownTimeout = 10 * time.Second

// EditOptions controls Edit.
type EditOptions struct {
	// Command is the editor to launch on the note file, e.g. "vim" or
	// "code --wait". The session ends when it exits. Empty falls back to
	// editor.command, then $EDITOR.
	Command string
	// Wait launches no editor and keeps the session open until interrupted.
	Wait bool
}

func (a *App) editorCommand(opts EditOptions) string {
	switch {
	case opts.Wait:
		return ""
	case opts.Command != "":
		return opts.Command
	case a.cfg.Editor.Command != "":
		return a.cfg.Editor.Command
	default:
		return os.Getenv("EDITOR")
	}
}

// Edit checks a note out into the workspace, serves a live preview and
// autosaves changes to the file until the editor exits or the process is
// interrupted. Pending changes are flushed before it returns.
func (a *App) Edit(ctx context.Context, id string, opts EditOptions) error {
	ws, err := workspace.Open(a.cfg.Editor.Workspace)
	if err != nil {
		return fmt.Errorf("edit: %w", err)
	}

	broker := sse.NewBroker()
	defer broker.Close()
	pv := preview.NewServer(id, broker, objecturl.NewRegistry(),
		preview.WithToken(a.cfg.Preview.Token),
		preview.WithLogger(a.logger))

	sess, err := editor.Open(ctx, a.api, ws, broker, pv, id, a.cfg.Editor.Session(), a.logger)
	if err != nil {
		return err
	}

	a.header("Editing " + displayTitle(sess.Note().Title))
	a.printf("  file:    %s\n", sess.File())
	a.printf("  preview: %s\n", a.previewURL("/"))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	httpServer := &http.Server{Addr: a.cfg.Preview.Address(), Handler: pv.Router()}

	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return sess.Run(gCtx)
	})

	if command := a.editorCommand(opts); command != "" {
		g.Go(func() error {
			err := a.runEditor(gCtx, command, sess.File())
			// Editors often exit right after writing; pick the write up
			// before the watcher is torn down.
			if rerr := sess.Reload(); rerr != nil {
				a.logger.Warn("edit: reload failed", slog.String("error", rerr.Error()))
			}
			stop()
			return err
		})
	}

	g.Go(func() error {
		defer stop()
		return a.serve(gCtx, httpServer)
	})

	runErr := g.Wait()

	if err := sess.Reload(); err != nil {
		a.logger.Warn("edit: reload failed", slog.String("error", err.Error()))
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	closeErr := sess.Close(flushCtx)

	title, content := sess.Status()
	a.printf("title %s, content %s\n", title.Status, content.Status)
	if closeErr != nil {
		a.printf("%s %s\n", errorStyle.Render("Not saved:"), closeErr)
	}
	return errors.Join(runErr, closeErr)
}

func (a *App) runEditor(ctx context.Context, command, file string) error {
	args := strings.Fields(command)
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], file)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	a.logger.Info("edit: launching editor", slog.String("command", args[0]))
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("edit: editor: %w", err)
	}
	return nil
}

// serve runs srv until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts it down gracefully.
func (a *App) serve(ctx context.Context, srv *http.Server) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			a.logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// previewURL returns the browser URL of path on the preview server.
func (a *App) previewURL(path string) string {
	host := a.cfg.Preview.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	u := url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", host, a.cfg.Preview.Port), Path: path}
	if a.cfg.Preview.Token != "" {
		u.RawQuery = url.Values{"access_token": {a.cfg.Preview.Token}}.Encode()
	}
	return u.String()
}
