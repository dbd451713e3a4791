package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/language"
	"github.com/lexandro/codesync/project"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReadArgs defines the input parameters for the codesync_read tool.
type ReadArgs struct {
	FilePath string `json:"filePath" jsonschema:"Relative file path to read (e.g. src/main.go)"`
	Offset   int    `json:"offset,omitempty" jsonschema:"1-based line number to start reading from"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of lines to return"`
}

// FileReader reads project files. *project.Project implements it.
type FileReader interface {
	ReadFile(relPath string) ([]byte, index.Entry, error)
}

// ReadHandler holds the dependencies for the read tool.
type ReadHandler struct {
	Reader FileReader
	Logger *slog.Logger
}

// Handle processes a codesync_read request.
func (h *ReadHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReadArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	if args.FilePath == "" {
		h.Logger.Warn("codesync_read called with empty filePath")
		return toolError("Error: filePath parameter is required"), nil, nil
	}

	content, entry, err := h.Reader.ReadFile(args.FilePath)
	if err != nil {
		h.Logger.Info("codesync_read failed", "filePath", args.FilePath, "error", err)
		switch {
		case errors.Is(err, project.ErrNotFound):
			return toolError(fmt.Sprintf("File not found: %s", args.FilePath)), nil, nil
		case errors.Is(err, project.ErrExcluded):
			return toolError(fmt.Sprintf("File is excluded by ignore rules: %s", args.FilePath)), nil, nil
		default:
			return toolError(fmt.Sprintf("Read error: %v", err)), nil, nil
		}
	}
	if language.IsBinaryContent(content) {
		return toolError(fmt.Sprintf("Binary file: %s", entry.RelativePath)), nil, nil
	}

	h.Logger.Info("codesync_read", "filePath", entry.RelativePath, "elapsed", time.Since(start))

	return toolText(FormatFileContent(entry.RelativePath, string(content), args.Offset, args.Limit)), nil, nil
}
