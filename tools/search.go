package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchArgs defines the input parameters for the codesync_search tool.
type SearchArgs struct {
	Query        string `json:"query" jsonschema:"Search query. Plain text for word match, quoted for exact phrase, /regex/ for regular expression"`
	FilePath     string `json:"filePath,omitempty" jsonschema:"Exact relative file path to search in (overrides fileGlob). Use this to search within a single specific file"`
	FileGlob     string `json:"fileGlob,omitempty" jsonschema:"Optional glob pattern to filter files (e.g. **/*.go)"`
	MaxResults   int    `json:"maxResults,omitempty" jsonschema:"Maximum number of file results to return (default 50)"`
	ContextLines int    `json:"contextLines,omitempty" jsonschema:"Number of context lines before and after each match (default 2)"`
}

const (
	defaultSearchResults = 50
	defaultContextLines  = 2
	maxContextLines      = 20
)

// SearchHandler holds the dependencies for the search tool.
type SearchHandler struct {
	ContentIndex *index.ContentIndex
	Logger       *slog.Logger
}

// Handle processes a codesync_search request.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.Query == "" {
		h.Logger.Warn("codesync_search called with empty query")
		return toolError("Error: query parameter is required"), nil, nil
	}
	if h.ContentIndex == nil {
		return toolError("Error: content search is disabled on this server"), nil, nil
	}

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}
	contextLines := min(args.ContextLines, maxContextLines)
	if contextLines <= 0 {
		contextLines = defaultContextLines
	}

	results, totalMatches, err := h.ContentIndex.Search(index.SearchOptions{
		Query:        args.Query,
		FilePath:     args.FilePath,
		FileGlob:     args.FileGlob,
		MaxResults:   maxResults,
		ContextLines: contextLines,
	})
	if err != nil {
		h.Logger.Error("codesync_search failed", "query", args.Query, "error", err)
		return toolError(fmt.Sprintf("Search error: %v", err)), nil, nil
	}

	h.Logger.Info("codesync_search",
		"query", args.Query,
		"filePath", args.FilePath,
		"fileGlob", args.FileGlob,
		"files", len(results),
		"matches", totalMatches,
		"elapsed", time.Since(start),
	)

	return toolText(FormatSearchResults(results, totalMatches)), nil, nil
}
