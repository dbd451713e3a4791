package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FilesArgs defines the input parameters for the codesync_files tool.
type FilesArgs struct {
	Pattern    string `json:"pattern" jsonschema:"Glob pattern to match files (e.g. **/*.ts or src/**/*.go)"`
	NameOnly   bool   `json:"nameOnly,omitempty" jsonschema:"If true return only file paths without metadata"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"Maximum number of results to return (default 50)"`
}

// FilesHandler holds the dependencies for the files tool.
type FilesHandler struct {
	FileIndex *index.FileIndex
	Logger    *slog.Logger
}

// Handle processes a codesync_files request.
func (h *FilesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FilesArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.Pattern == "" {
		h.Logger.Warn("codesync_files called with empty pattern")
		return toolError("Error: pattern parameter is required"), nil, nil
	}

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	results, err := h.FileIndex.SearchByGlob(args.Pattern, maxResults)
	if err != nil {
		h.Logger.Error("codesync_files failed", "pattern", args.Pattern, "error", err)
		return toolError(fmt.Sprintf("Search error: %v", err)), nil, nil
	}

	h.Logger.Info("codesync_files",
		"pattern", args.Pattern,
		"results", len(results),
		"elapsed", time.Since(start),
	)

	return toolText(FormatFileResults(results, args.NameOnly)), nil, nil
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
