package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusArgs defines the input parameters for the codesync_status tool (none required).
type StatusArgs struct{}

// StatusHandler holds the dependencies for the status tool.
type StatusHandler struct {
	FileIndex    *index.FileIndex
	ContentIndex *index.ContentIndex // nil when content search is disabled
	Hub          *notify.Hub
	StartTime    time.Time
	RootDir      string
	Logger       *slog.Logger
}

// Handle processes a codesync_status request.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	var builder strings.Builder

	fileCount := h.FileIndex.FileCount()
	totalSize := h.FileIndex.TotalSizeBytes()
	uptime := time.Since(h.StartTime)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.Logger.Info("codesync_status",
		"files", fileCount,
		"totalSize", totalSize,
		"memory", memStats.Alloc,
		"uptime", uptime,
	)

	builder.WriteString("=== codesync Status ===\n\n")
	builder.WriteString(fmt.Sprintf("Root directory: %s\n", h.RootDir))
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", formatDuration(uptime)))
	builder.WriteString(fmt.Sprintf("Indexed files: %d\n", fileCount))
	builder.WriteString(fmt.Sprintf("Total indexed size: %s\n", formatFileSize(totalSize)))
	if h.ContentIndex != nil {
		builder.WriteString(fmt.Sprintf("Content-indexed documents: %d\n", h.ContentIndex.DocumentCount()))
	} else {
		builder.WriteString("Content search: disabled\n")
	}
	if h.Hub != nil {
		builder.WriteString(fmt.Sprintf("Event subscribers: %d\n", h.Hub.Subscribers()))
		builder.WriteString(fmt.Sprintf("Events published: %d\n", h.Hub.Published()))
	}
	builder.WriteString(fmt.Sprintf("Memory usage: %s (heap: %s)\n",
		formatFileSize(int64(memStats.Alloc)),
		formatFileSize(int64(memStats.HeapAlloc)),
	))

	return toolText(builder.String()), nil, nil
}
