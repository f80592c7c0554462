package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type startResearchInput struct {
	Topic   string `json:"topic" jsonschema:"the research topic or question"`
	Breadth int    `json:"breadth,omitempty" jsonschema:"queries per level, 1-10 (default 2)"`
	Depth   int    `json:"depth,omitempty" jsonschema:"levels of follow-up research, 1-5 (default 3)"`
}

type getResearchInput struct {
	ID string `json:"id" jsonschema:"the job id returned by start_research"`
}

// NewMCPServer exposes research jobs as MCP tools.
func NewMCPServer(s *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "research-bot-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "start_research",
			Description: "Start a deep research job on a topic. Returns the job; poll it with get_research.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args startResearchInput) (*mcp.CallToolResult, any, error) {
			job, err := s.CreateJob(ctx, CreateJobRequest(args))
			if err != nil {
				return toolError(err.Error())
			}
			return toolResult(job)
		},
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_research",
			Description: "Get the status, progress and, once completed, the report of a research job.",
		},
		func(ctx context.Context, _ *mcp.CallToolRequest, args getResearchInput) (*mcp.CallToolResult, any, error) {
			job, err := s.GetJob(ctx, args.ID)
			if err != nil {
				return toolError(err.Error())
			}
			return toolResult(job)
		},
	)

	return server
}

// NewMCPHandler serves the MCP server over streamable HTTP.
func NewMCPHandler(s *Service) http.Handler {
	server := NewMCPServer(s)
	return mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return server },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
}

func toolError(message string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
	}, nil, nil
}

func toolResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
