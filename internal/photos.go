package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/scribe/internal/backend"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/objecturl"
	"github.com/starford/scribe/internal/preview"
	"github.com/starford/scribe/internal/secureimage"
	"github.com/starford/scribe/internal/upload"
)

// ListPhotos prints every photo with its public URL.
func (a *App) ListPhotos(ctx context.Context) error {
	photos, err := get[[]models.Photo](ctx, a, backend.PhotosPath)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}
	if len(photos) == 0 {
		a.printf("%s\n", dimStyle.Render("No photos yet."))
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", headerStyle.Render("NAME"), headerStyle.Render("SIZE"), headerStyle.Render("UPLOADED"), headerStyle.Render("URL"))
	for _, p := range photos {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, humanize.Bytes(uint64(p.SizeB)), humanize.Time(p.CreatedAt), a.api.PublicURL(p.Name))
	}
	return tw.Flush()
}

// UploadPhoto validates and uploads the image at path.
func (a *App) UploadPhoto(ctx context.Context, path string) error {
	f, err := upload.Open(path, upload.MaxPhotoSize)
	if err != nil {
		return err
	}
	return a.report(a.api.UploadPhoto(ctx, f))
}

// ViewOptions controls ViewPhoto.
type ViewOptions struct {
	// Output receives the image bytes when set.
	Output string
	// Serve keeps the image available over HTTP until interrupted.
	Serve bool
}

// ViewPhoto fetches a photo through the authenticated view endpoint. The
// object URL it creates is revoked before returning.
func (a *App) ViewPhoto(ctx context.Context, name string, opts ViewOptions) error {
	objects := objecturl.NewRegistry()
	viewer := secureimage.NewViewer(a.client, a.tokens, objects, a.logger)
	defer viewer.Close()

	u, err := viewer.Show(ctx, name)
	if err != nil {
		return fmt.Errorf("view photo: %w", err)
	}
	data, contentType, _ := objects.Lookup(u)
	a.printf("%s %s (%s, %s)\n", successStyle.Render("Loaded"), name, contentType, humanize.Bytes(uint64(len(data))))

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return fmt.Errorf("view photo: %w", err)
		}
		a.printf("Saved to %s\n", opts.Output)
	}
	if !opts.Serve {
		return nil
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(preview.AuthMiddleware(a.cfg.Preview.Token))
	r.Get("/objects/{id}", objects.Handler().ServeHTTP)

	a.printf("Serving at %s\n", a.previewURL("/objects/"+objecturl.ID(u)))
	return a.serve(ctx, &http.Server{Addr: a.cfg.Preview.Address(), Handler: r})
}

// report prints an upload result. An error result fails the command.
func (a *App) report(res upload.Result) error {
	if !res.OK() {
		a.logger.Warn("upload failed", slog.String("message", res.Message))
		a.printf("%s %s\n", errorStyle.Render("Error:"), res.Message)
		return errFailed
	}
	a.printf("%s\n", successStyle.Render(res.Message))
	return nil
}
