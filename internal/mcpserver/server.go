// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Gebo tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/noteservice"
)

// Server wraps the MCP server with Gebo tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Gebo tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Gebo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path to the note (e.g. 20240101T100000--inbox.org)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note at the specified path. "+
			"The filename MUST carry a unique identifier and the content MUST follow "+
			"the canonical note format for its flavor. Read the contract first via "+
			"the get_note_contract tool or the gebo://note-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path for the new note (identifier--title-slug.ext)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note content following the Gebo note format contract")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the canonical Gebo note format contract. "+
			"Call this before creating notes or links to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List indexed notes, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("resolve_note",
		mcp.WithDescription("Resolve a note identifier to its current vault path."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Note identifier (e.g. 20240101T100000)")),
	), s.resolveNote)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified identifier."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Identifier to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("merge_notes",
		mcp.WithDescription("Merge one note into another: the source body is appended to "+
			"the destination under a heading, every backlink in the vault is retargeted "+
			"to the destination identifier, and the source file is removed."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path of the note to merge away")),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Path of the note to merge into")),
	), s.mergeNotes)

	s.mcp.AddTool(mcp.NewTool("merge_region",
		mcp.WithDescription("Move a byte region of one note into another as a formatted "+
			"block, leaving a link to the destination at the cut site."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path of the note to cut from")),
		mcp.WithString("destination", mcp.Required(), mcp.Description("Path of the note to append to")),
		mcp.WithNumber("start", mcp.Required(), mcp.Description("Region start byte offset (inclusive)")),
		mcp.WithNumber("end", mcp.Required(), mcp.Description("Region end byte offset (exclusive)")),
		mcp.WithString("kind", mcp.Description("Format kind: plain, plain-indented, src-block, quote-block, example-block, markdown-quote, markdown-fence (default plain)")),
	), s.mergeRegion)

	s.mcp.AddTool(mcp.NewTool("save_buffers",
		mcp.WithDescription("Persist every merge buffer with unsaved changes to disk."),
	), s.saveBuffers)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource("gebo://note-format", "Note Format Contract",
			mcp.WithResourceDescription("Canonical note naming and link format that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

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

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.CreateNote(ctx, path, []byte(content)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag := req.GetString("tag", "")
	items, _, err := s.svc.ListNotes(ctx, 0, 0, tag, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var paths []string
	for _, item := range items {
		paths = append(paths, item.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) resolveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.ResolveNote(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no note with identifier: %s", id)), nil
	}
	return mcp.NewToolResultText(note.Path), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) mergeNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := req.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.MergeFile(ctx, source, dest)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Summary()), nil
}

func (s *Server) mergeRegion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dest, err := req.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := req.RequireInt("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := req.RequireInt("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := markup.ParseKind(req.GetString("kind", ""))

	res, err := s.svc.MergeRegion(ctx, source, dest, start, end, kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Summary()), nil
}

func (s *Server) saveBuffers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	saved, err := s.svc.SaveBuffers(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(saved) == 0 {
		return mcp.NewToolResultText("no unsaved buffers"), nil
	}
	return mcp.NewToolResultText("saved:\n" + strings.Join(saved, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "gebo://note-format",
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
