package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ReindexArgs defines the input parameters for the codesync_reindex tool.
type ReindexArgs struct{}

// ReindexFunc rebuilds the index from disk. It is provided by main.go to
// avoid circular dependencies.
type ReindexFunc func(ctx context.Context) (index.ScanResult, error)

// ReindexHandler holds the dependencies for the reindex tool.
type ReindexHandler struct {
	DoReindex ReindexFunc
	Logger    *slog.Logger
}

// Handle processes a codesync_reindex request.
func (h *ReindexHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args ReindexArgs) (*mcp.CallToolResult, any, error) {
	h.Logger.Info("codesync_reindex started")

	result, err := h.DoReindex(ctx)
	if err != nil {
		h.Logger.Error("codesync_reindex failed", "error", err)
		return toolError(fmt.Sprintf("Reindex error: %v", err)), nil, nil
	}

	elapsed := result.Duration.Round(time.Millisecond)
	h.Logger.Info("codesync_reindex complete",
		"files", len(result.Entries),
		"totalSize", result.TotalSize,
		"elapsed", elapsed,
	)

	output := fmt.Sprintf("Reindex complete: %d files (%s) in %s",
		len(result.Entries), formatFileSize(result.TotalSize), elapsed)
	if result.Oversized > 0 {
		output += fmt.Sprintf(", %d oversized files skipped", result.Oversized)
	}

	return toolText(output), nil, nil
}
