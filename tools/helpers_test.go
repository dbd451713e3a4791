package tools

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexandro/codesync/ignore"
	"github.com/lexandro/codesync/project"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("expected a tool result with content")
	}
	return result.Content[0].(*mcp.TextContent).Text
}

// newTestProject creates a project over a temp dir holding the given files.
func newTestProject(t *testing.T, files map[string]string) *project.Project {
	t.Helper()
	root := t.TempDir()
	for relPath, content := range files {
		absPath := filepath.Join(root, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	p, err := project.New(project.Options{
		RootDir: root,
		Matcher: ignore.NewMatcher(ignore.MatcherOptions{RootDir: root, Config: ignore.DefaultConfig()}),
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return p
}
