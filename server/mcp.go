package server

import (
	"net/http"

	"github.com/lexandro/codesync/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// ToolHandlers groups the MCP tool implementations.
type ToolHandlers struct {
	Search  *tools.SearchHandler // nil when content search is disabled
	Files   *tools.FilesHandler
	Read    *tools.ReadHandler
	Status  *tools.StatusHandler
	Reindex *tools.ReindexHandler
}

// NewMCPServer creates the MCP server with all tool registrations.
func NewMCPServer(handlers ToolHandlers) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "codesync",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `This server exposes a live, in-memory index of a project directory that is kept current by a filesystem watcher.

Prefer these tools over scanning the filesystem:
- Use codesync_files to find files by glob pattern
- Use codesync_read to read a file with line numbers
- Use codesync_search for full-text, phrase or regex search over file contents
- Files excluded by the project's ignore rules are never listed, read or searched`,
		},
	)

	if handlers.Search != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name: "codesync_search",
			Description: `Search file contents using full-text indexed search.

Query formats:
  - Plain text: word-level matching (e.g., "handleRequest")
  - "quoted text": exact phrase matching (e.g., "\"func main\"")
  - /regex/: regular expression matching (e.g., "/func\s+\w+Handler/")

Filtering:
  - filePath: exact relative path to search in a single file (e.g., "src/main.go"). Overrides fileGlob.
  - fileGlob: glob pattern to filter by file type (e.g., "**/*.go").`,
		}, handlers.Search.Handle)
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "codesync_files",
		Description: `Find indexed files by glob pattern.

Pattern examples:
  - "**/*.go" - all Go files
  - "src/**/*.ts" - TypeScript files under src/
  - "*.json" - JSON files in root only`,
	}, handlers.Files.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "codesync_read",
		Description: `Read a project file. Returns numbered lines (format: "N: content"). Use offset and limit to page through large files.`,
	}, handlers.Read.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "codesync_status",
		Description: "Show index status: file count, size, event subscribers, memory usage, and uptime.",
	}, handlers.Status.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "codesync_reindex",
		Description: "Force a full rescan of the project. The index is swapped only after the scan completes.",
	}, handlers.Reindex.Handle)

	return mcpServer
}

// NewMCPHandler serves mcpServer over the streamable HTTP transport.
func NewMCPHandler(mcpServer *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)
}
