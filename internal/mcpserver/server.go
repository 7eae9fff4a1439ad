// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes projectsync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/projectservice"
)

const formatURI = "projectsync://project-format"

// Server wraps the MCP server with projectsync tools.
type Server struct {
	mcp  *server.MCPServer
	svc  *projectservice.Service
	list *projectlist.Consumer
}

// New creates a new MCP server with all projectsync tools registered.
func New(svc *projectservice.Service, list *projectlist.Consumer, version string) *Server {
	s := &Server{svc: svc, list: list}

	s.mcp = server.NewMCPServer(
		"projectsync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the cached projects sorted by order. Loads the list first when nothing is cached."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("suggest_projects",
		mcp.WithDescription("Autocomplete suggestions (name and id) for the cached projects."),
		mcp.WithString("prefix", mcp.Description("Optional case-insensitive name prefix")),
	), s.suggestProjects)

	s.mcp.AddTool(mcp.NewTool("resolve_projects",
		mcp.WithDescription("Split selected entries into IDs of existing projects and names that still have to be created."),
		mcp.WithArray("projects", mcp.Required(), mcp.Description("Selected project IDs or new names"), mcp.Items(map[string]any{"type": "string"})),
	), s.resolveProjects)

	s.mcp.AddTool(mcp.NewTool("create_project",
		mcp.WithDescription("Create a project placed after all existing ones. "+
			"Read the format via get_project_format or the "+formatURI+" resource first."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("description", mcp.Description("Optional Markdown description")),
	), s.createProject)

	s.mcp.AddTool(mcp.NewTool("refresh_projects",
		mcp.WithDescription("Reload the project list from storage."),
	), s.refreshProjects)

	s.mcp.AddTool(mcp.NewTool("get_project_format",
		mcp.WithDescription("Returns the project document format. "+
			"Call this before creating projects to ensure correct structure."),
	), s.getProjectFormat)

	// Resource: project format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Project Format",
			mcp.WithResourceDescription("Markdown project document format used by storage."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readProjectFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := s.list.Projects()
	if list == nil {
		if err := s.list.Reload(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		list = s.list.Projects()
	}
	return jsonResult(list), nil
}

func (s *Server) suggestProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := strings.ToLower(req.GetString("prefix", ""))
	suggestions := s.list.Suggestions()
	if suggestions == nil {
		return mcp.NewToolResultText("no projects loaded"), nil
	}
	out := make([]projectlist.Suggestion, 0, len(suggestions))
	for _, sg := range suggestions {
		if strings.HasPrefix(strings.ToLower(sg.Value), prefix) {
			out = append(out, sg)
		}
	}
	return jsonResult(out), nil
}

func (s *Server) resolveProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	selected, err := stringList(req.GetArguments()["projects"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.list.ProcessSelected(selected)), nil
}

// stringList accepts a JSON array of strings as decoded by the transport.
func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("projects: expected strings, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("required argument \"projects\" not found")
	default:
		return nil, fmt.Errorf("projects: expected a list, got %T", v)
	}
}

func (s *Server) createProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Create(ctx, name, req.GetString("description", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(p), nil
}

func (s *Server) refreshProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.list.Reload(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("reloaded: %d projects", len(s.list.Projects()))), nil
}

func (s *Server) getProjectFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProjectFormatContract), nil
}

func (s *Server) readProjectFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ProjectFormatContract,
		},
	}, nil
}
