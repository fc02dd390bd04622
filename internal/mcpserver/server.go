// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Scribe's remote notes, photos, finance and weather endpoints
// as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/backend"
	"github.com/starford/scribe/internal/models"
)

const noteFormatURI = "scribe://note-format"

// Server wraps the MCP server with Scribe tools.
type Server struct {
	mcp    *server.MCPServer
	api    *backend.API
	logger *slog.Logger
}

// New creates a new MCP server with all Scribe tools registered.
func New(api *backend.API, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{api: api, logger: logger}

	s.mcp = server.NewMCPServer(
		"Scribe",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, most recently updated first. Each line is: id, title, last update."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note by id. Returns the note as JSON including its markdown content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (UUID)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Call get_note_contract first to learn the note fields."),
		mcp.WithString("title", mcp.Description("Note title, defaults to Untitled")),
		mcp.WithString("content", mcp.Description("Markdown body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Update the title and/or content of a note. Omitted fields are left unchanged."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (UUID)")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New markdown body")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note by id"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id (UUID)")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note field contract. Read this before creating or updating notes."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_photos",
		mcp.WithDescription("List uploaded photos with their public URLs"),
	), s.listPhotos)

	s.mcp.AddTool(mcp.NewTool("upload_photo",
		mcp.WithDescription("Upload an image from an HTTP(S) URL or a base64 data URI. Max 5 MB; png, jpg, jpeg, gif, webp."),
		mcp.WithString("url", mcp.Required(), mcp.Description("HTTP(S) URL or data:image/...;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional filename; derived from the URL when omitted")),
	), s.uploadPhoto)

	s.mcp.AddTool(mcp.NewTool("list_transactions",
		mcp.WithDescription("List imported finance transactions as JSON"),
	), s.listTransactions)

	s.mcp.AddTool(mcp.NewTool("get_weather",
		mcp.WithDescription("Current weather at a location"),
		mcp.WithNumber("latitude", mcp.Required(), mcp.Description("Latitude in degrees")),
		mcp.WithNumber("longitude", mcp.Required(), mcp.Description("Longitude in degrees")),
		mcp.WithString("unit", mcp.Description("F (default) or C")),
	), s.getWeather)

	s.mcp.AddResource(mcp.NewResource(
		noteFormatURI,
		"Note Format Contract",
		mcp.WithResourceDescription("Fields and conventions of Scribe notes"),
		mcp.WithMIMEType("text/markdown"),
	), s.readNoteFormatResource)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError converts an API failure into a tool error result. Tool errors are
// results, not protocol errors, so the model can read and react to them.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	msg := err.Error()
	switch {
	case errors.Is(err, apperr.ErrNoToken):
		msg = "not signed in: no token available"
	case apperr.StatusCode(err) == 404:
		msg = "not found"
	}
	s.logger.Warn("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(msg)
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.api.ListNotes(ctx)
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", n.ID, n.Title, humanize.Time(n.UpdatedAt)))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.api.GetNote(ctx, id)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	return jsonResult(note), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := models.NewNote{
		Title:   req.GetString("title", ""),
		Content: req.GetString("content", ""),
	}
	note, err := s.api.CreateNote(ctx, in)
	if err != nil {
		return s.toolError("create_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var upd models.NoteUpdate
	args := req.GetArguments()
	if v, ok := args["title"].(string); ok {
		upd.Title = &v
	}
	if v, ok := args["content"].(string); ok {
		upd.Content = &v
	}
	if err := upd.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.api.UpdateNote(ctx, id, upd); err != nil {
		return s.toolError("update_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", id)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.api.DeleteNote(ctx, id); err != nil {
		return s.toolError("delete_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

type photoEntry struct {
	Name string `json:"name"`
	Size string `json:"size"`
	URL  string `json:"url"`
}

func (s *Server) listPhotos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	photos, err := s.api.ListPhotos(ctx)
	if err != nil {
		return s.toolError("list_photos", err), nil
	}
	out := make([]photoEntry, 0, len(photos))
	for _, p := range photos {
		out = append(out, photoEntry{
			Name: p.Name,
			Size: humanize.Bytes(uint64(p.SizeB)),
			URL:  s.api.PublicURL(p.Name),
		})
	}
	return jsonResult(out), nil
}

func (s *Server) listTransactions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	txs, err := s.api.ListTransactions(ctx)
	if err != nil {
		return s.toolError("list_transactions", err), nil
	}
	return jsonResult(txs), nil
}

func (s *Server) getWeather(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("latitude")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lon, err := req.RequireFloat("longitude")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	unit := strings.ToUpper(req.GetString("unit", models.UnitFahrenheit))
	w, err := s.api.GetWeather(ctx, models.Coords{Latitude: lat, Longitude: lon}, unit)
	if err != nil {
		return s.toolError("get_weather", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %.1f°%s, %s", w.Location, w.Temperature2m, unit, w.Condition())), nil
}
