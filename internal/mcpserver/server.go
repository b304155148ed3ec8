// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes planner tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/calendle/internal/document"
	"github.com/starford/calendle/internal/ident"
	"github.com/starford/calendle/internal/index"
	"github.com/starford/calendle/internal/planner"
	"github.com/starford/calendle/internal/week"
)

const contractURI = "calendle://document-format"

// Searcher runs bullet searches.
type Searcher interface {
	Search(query string, limit int) ([]index.SearchResult, error)
}

// Server wraps the MCP server with planner tools.
type Server struct {
	mcp     *server.MCPServer
	planner *planner.Session
	search  Searcher
	now     func() time.Time
}

// New creates a new MCP server with all planner tools registered. search may
// be nil, in which case search_bullets reports an error.
func New(p *planner.Session, search Searcher, version string) *Server {
	s := &Server{planner: p, search: search, now: time.Now}

	s.mcp = server.NewMCPServer(
		"Calendle",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("load_week",
		mcp.WithDescription("Load the seven days of the ISO week containing a date, followed by a list document. "+
			"Missing weeks are created with one empty todo per day. See the get_document_format tool for the shape."),
		mcp.WithString("date", mcp.Description("Any date in the week as YYYY-MM-DD, or a week key such as 2024-33 (default: today)")),
		mcp.WithString("list", mcp.Description("List document to append (default: the first catalog list)")),
	), s.loadWeek)

	s.mcp.AddTool(mcp.NewTool("list_catalog",
		mcp.WithDescription("List the recognized list document names, one per line."),
	), s.listCatalog)

	s.mcp.AddTool(mcp.NewTool("search_bullets",
		mcp.WithDescription("Search bullet text across all weeks and lists."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchBullets)

	s.mcp.AddTool(mcp.NewTool("add_bullet",
		mcp.WithDescription("Append a todo bullet to a day of the week, or to a list when list is given."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Bullet text")),
		mcp.WithString("date", mcp.Description("Day to append to, YYYY-MM-DD (default: today)")),
		mcp.WithString("list", mcp.Description("Append to this list instead of the day")),
	), s.addBullet)

	s.mcp.AddTool(mcp.NewTool("get_document_format",
		mcp.WithDescription("Returns the week and list document format."),
	), s.getDocumentFormat)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Document Format",
			mcp.WithResourceDescription("JSON format of week and list documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// Listen serves MCP over the given streams (normally stdin and stdout) until
// ctx is cancelled or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// jsonResult renders v as indented JSON text, or as a tool error when v
// cannot be encoded.
func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(out))
}

func optionalString(req mcp.CallToolRequest, name string) string {
	v, err := req.RequireString(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func (s *Server) dateArg(req mcp.CallToolRequest) (time.Time, error) {
	raw := optionalString(req, "date")
	if raw == "" {
		return s.now(), nil
	}
	return week.ParseDate(raw)
}

// weekArg is dateArg that also accepts a week key.
func (s *Server) weekArg(req mcp.CallToolRequest) (time.Time, error) {
	if raw := optionalString(req, "date"); week.IsKey(raw) {
		return week.ParseKey(raw)
	}
	return s.dateArg(req)
}

func (s *Server) listArg(req mcp.CallToolRequest) string {
	if l := optionalString(req, "list"); l != "" {
		return l
	}
	return s.planner.Lists()[0]
}

func (s *Server) loadWeek(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := s.weekArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	merged, err := s.planner.LoadMerged(ctx, date, s.listArg(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(merged), nil
}

func (s *Server) listCatalog(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.planner.Lists(), "\n")), nil
}

func (s *Server) searchBullets(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.search == nil {
		return mcp.NewToolResultError("search index is not available"), nil
	}
	results, err := s.search.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no bullets found"), nil
	}
	return jsonResult(results), nil
}

func (s *Server) addBullet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := s.dateArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target := optionalString(req, "list")
	list := s.listArg(req)

	merged, err := s.planner.LoadMerged(ctx, date, list)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b := document.EmptyBullet(ident.New())
	b.Text = text

	var where string
	if target != "" {
		merged.List.Bullets = append(merged.List.Bullets, b)
		where = target
	} else {
		day := date.Format(week.DateLayout)
		for i := range merged.Days {
			if merged.Days[i].Date == day {
				merged.Days[i].Bullets = append(merged.Days[i].Bullets, b)
			}
		}
		where = day
	}
	if err := s.planner.SaveMerged(ctx, merged); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added %s to %s", b.ID, where)), nil
}

func (s *Server) getDocumentFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readDocumentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
