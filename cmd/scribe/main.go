package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/scribe/internal"
	"github.com/starford/scribe/internal/models"
	pkgconfig "github.com/starford/scribe/pkg/config"
)

// newApp loads the config named by --config and builds the application.
func newApp(cmd *cli.Command) (*internal.App, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	app, err := internal.New(internal.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("app init error: %w", err)
	}
	return app, nil
}

// action adapts an App method to a cli action.
func action(fn func(ctx context.Context, app *internal.App, cmd *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, app, cmd)
	}
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", cli.Exit(fmt.Sprintf("%s: missing <%s>", cmd.FullName(), name), 2)
	}
	return v, nil
}

func notesCommand() *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "List, read, search, create and delete notes",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List notes, most recently updated first",
				Action: action(func(ctx context.Context, app *internal.App, _ *cli.Command) error {
					return app.ListNotes(ctx)
				}),
			},
			{
				Name:      "show",
				Usage:     "Render a note in the terminal",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "raw", Usage: "Print markdown instead of rendering it"},
					&cli.IntFlag{Name: "width", Value: 80, Usage: "Word wrap width"},
				},
				Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return app.ShowNote(ctx, id, cmd.Bool("raw"), int(cmd.Int("width")))
				}),
			},
			{
				Name:      "find",
				Usage:     "Fuzzy search note titles",
				ArgsUsage: "<pattern>",
				Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
					pattern, err := requireArg(cmd, "pattern")
					if err != nil {
						return err
					}
					return app.FindNotes(ctx, pattern)
				}),
			},
			{
				Name:  "new",
				Usage: "Create a note",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title (default Untitled)"},
					&cli.StringFlag{Name: "content", Usage: "Markdown body"},
					&cli.BoolFlag{Name: "edit", Aliases: []string{"e"}, Usage: "Start editing the new note"},
				},
				Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
					note, err := app.NewNote(ctx, cmd.String("title"), cmd.String("content"))
					if err != nil || !cmd.Bool("edit") {
						return err
					}
					return app.Edit(ctx, note.ID, internal.EditOptions{})
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete a note",
				ArgsUsage: "<id>",
				Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
					id, err := requireArg(cmd, "id")
					if err != nil {
						return err
					}
					return app.RemoveNote(ctx, id)
				}),
			},
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a note in a local file with live preview and autosave",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "editor",
				Usage:   "Editor command to open the note file with; the session ends when it exits",
				Sources: cli.EnvVars("SCRIBE_EDITOR"),
			},
			&cli.BoolFlag{Name: "wait", Usage: "Do not launch an editor; run until interrupted"},
		},
		Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
			id, err := requireArg(cmd, "id")
			if err != nil {
				return err
			}
			return app.Edit(ctx, id, internal.EditOptions{
				Command: cmd.String("editor"),
				Wait:    cmd.Bool("wait"),
			})
		}),
	}
}

func photosCommand() *cli.Command {
	return &cli.Command{
		Name:  "photos",
		Usage: "List, upload and view photos",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List photos with their public URLs",
				Action: action(func(ctx context.Context, app *internal.App, _ *cli.Command) error {
					return app.ListPhotos(ctx)
				}),
			},
			{
				Name:      "upload",
				Usage:     "Upload an image (png, jpg, gif, webp; max 5MB)",
				ArgsUsage: "<file>",
				Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
					path, err := requireArg(cmd, "file")
					if err != nil {
						return err
					}
					return app.UploadPhoto(ctx, path)
				}),
			},
			{
				Name:      "view",
				Usage:     "Fetch a photo through the authenticated view endpoint",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Save the image to this file"},
					&cli.BoolFlag{Name: "serve", Usage: "Serve the image on the preview address until interrupted"},
				},
				Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
					name, err := requireArg(cmd, "name")
					if err != nil {
						return err
					}
					return app.ViewPhoto(ctx, name, internal.ViewOptions{
						Output: cmd.String("output"),
						Serve:  cmd.Bool("serve"),
					})
				}),
			},
		},
	}
}

func financeCommand() *cli.Command {
	return &cli.Command{
		Name:  "finance",
		Usage: "List and import transactions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List imported transactions",
				Action: action(func(ctx context.Context, app *internal.App, _ *cli.Command) error {
					return app.ListTransactions(ctx)
				}),
			},
			{
				Name:      "upload",
				Usage:     "Import a CSV of date,name,amount[,category] rows (max 10MB)",
				ArgsUsage: "<file.csv>",
				Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
					path, err := requireArg(cmd, "file.csv")
					if err != nil {
						return err
					}
					return app.UploadCSV(ctx, path)
				}),
			},
		},
	}
}

func weatherCommand() *cli.Command {
	return &cli.Command{
		Name:  "weather",
		Usage: "Show current weather at the cached or configured location",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "F or C (default from config)"},
			&cli.StringFlag{Name: "lat", Usage: "Latitude to cache as the current location"},
			&cli.StringFlag{Name: "lon", Usage: "Longitude to cache as the current location"},
			&cli.BoolFlag{Name: "forget", Usage: "Clear the cached location or refusal first"},
		},
		Action: action(func(ctx context.Context, app *internal.App, cmd *cli.Command) error {
			opts := internal.WeatherOptions{Unit: cmd.String("unit"), Forget: cmd.Bool("forget")}
			if cmd.IsSet("lat") || cmd.IsSet("lon") {
				lat, err := strconv.ParseFloat(cmd.String("lat"), 64)
				if err != nil {
					return cli.Exit("weather: --lat must be a number", 2)
				}
				lon, err := strconv.ParseFloat(cmd.String("lon"), 64)
				if err != nil {
					return cli.Exit("weather: --lon must be a number", 2)
				}
				opts.At = &models.Coords{Latitude: lat, Longitude: lon}
			}
			return app.Weather(ctx, opts)
		}),
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve notes, photos, finance and weather as MCP tools on stdio",
		Action: action(func(ctx context.Context, app *internal.App, _ *cli.Command) error {
			return app.ServeMCP(ctx)
		}),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "scribe",
		Usage: "Notes, photos, finance and weather from the terminal, with live-preview editing and autosave",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("SCRIBE_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			notesCommand(),
			editCommand(),
			photosCommand(),
			financeCommand(),
			weatherCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if !internal.IsReported(err) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
