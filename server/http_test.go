package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/codesync/ignore"
	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/project"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, options Options) (*Server, *project.Project, string) {
	t.Helper()
	root := t.TempDir()
	p, err := project.New(project.Options{
		RootDir: root,
		Matcher: ignore.NewMatcher(ignore.MatcherOptions{
			RootDir:          root,
			Config:           ignore.DefaultConfig(),
			MaxFileSizeBytes: 1024,
		}),
		Logger: testLogger(),
	})
	require.NoError(t, err)

	options.Project = p
	options.Logger = testLogger()
	return New(options), p, root
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	absPath := filepath.Join(root, filepath.FromSlash(relPath))
	require.NoError(t, os.MkdirAll(filepath.Dir(absPath), 0755))
	require.NoError(t, os.WriteFile(absPath, []byte(content), 0644))
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func Test_Server_Health(t *testing.T) {
	s, p, root := newTestServer(t, Options{Watching: true})
	writeFile(t, root, "a.txt", "hello")
	_, err := p.Rescan(t.Context())
	require.NoError(t, err)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, filepath.Base(root), body["root"])
	assert.Equal(t, float64(1), body["indexed_files"])
	assert.Equal(t, map[string]any{"exec": true, "watch": true, "search": false}, body["capabilities"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func Test_Server_List(t *testing.T) {
	s, p, root := newTestServer(t, Options{})
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "docs/readme.md", "# docs")
	writeFile(t, root, "node_modules/x.js", "x")
	_, err := p.Rescan(t.Context())
	require.NoError(t, err)

	var all struct {
		Files []fileJSON `json:"files"`
	}
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all.Files, 2)

	var goFiles struct {
		Files []fileJSON `json:"files"`
	}
	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/list?glob=**/*.go", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&goFiles))
	require.Len(t, goFiles.Files, 1)
	assert.Equal(t, "main.go", goFiles.Files[0].Path)
	assert.Equal(t, int64(12), goFiles.Files[0].Size)
	assert.Greater(t, goFiles.Files[0].MTime, float64(0))

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/list?glob=%5B", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Server_ReadErrors(t *testing.T) {
	s, _, root := newTestServer(t, Options{})
	writeFile(t, root, "node_modules/x.js", "x")
	writeFile(t, root, "big.txt", string(make([]byte, 2048)))

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantType   ErrorType
	}{
		{"excluded path", "node_modules/x.js", http.StatusForbidden, ErrorTypeForbidden},
		{"escaping path", "../outside.txt", http.StatusBadRequest, ErrorTypeValidation},
		{"missing file", "missing.txt", http.StatusNotFound, ErrorTypeNotFound},
		{"oversized file", "big.txt", http.StatusBadRequest, ErrorTypeTooLarge},
		{"empty path", "", http.StatusBadRequest, ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/read", map[string]string{"path": tt.path})
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, string(tt.wantType), body["type"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func Test_Server_InvalidJSONBody(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/read", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Server_WriteReadDeleteMove(t *testing.T) {
	s, p, root := newTestServer(t, Options{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/write", map[string]string{"path": "src/new.txt", "content": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "src/new.txt", decodeBody(t, rec)["path"])
	entry, ok := p.Lookup("src/new.txt")
	require.True(t, ok)
	assert.Equal(t, int64(5), entry.SizeBytes)

	rec = doJSON(t, h, http.MethodPost, "/api/read", map[string]string{"path": "src/new.txt"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decodeBody(t, rec)["content"])

	rec = doJSON(t, h, http.MethodPost, "/api/move", map[string]string{"source": "src/new.txt", "destination": "dst/moved.txt"})
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok = p.Lookup("dst/moved.txt")
	assert.True(t, ok)
	_, err := os.Stat(filepath.Join(root, "dst", "moved.txt"))
	assert.NoError(t, err)

	rec = doJSON(t, h, http.MethodPost, "/api/move", map[string]string{"source": "dst/moved.txt", "destination": "build/moved.txt"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/delete", map[string]string{"path": "dst"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, p.Index().FileCount())

	rec = doJSON(t, h, http.MethodPost, "/api/delete", map[string]string{"path": "dst"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_Server_WriteRequiresContent(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/write", map[string]string{"path": "a.txt"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/write", map[string]string{"path": "build/a.txt", "content": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_Server_BatchReadSkipsFailures(t *testing.T) {
	s, _, root := newTestServer(t, Options{})
	writeFile(t, root, "a.txt", "A")
	writeFile(t, root, "b.txt", "B")

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/batch-read", map[string][]string{
		"paths": {"a.txt", "missing.txt", "node_modules/x.js", "b.txt"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Files []contentJSON `json:"files"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []contentJSON{{Path: "a.txt", Content: "A"}, {Path: "b.txt", Content: "B"}}, body.Files)
}

func Test_Server_Search(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s, _, _ := newTestServer(t, Options{})
		rec := doJSON(t, s.Handler(), http.MethodGet, "/api/search?q=hello", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		content, err := index.NewContentIndex()
		require.NoError(t, err)
		t.Cleanup(func() { content.Close() })
		require.NoError(t, content.IndexFile(index.Entry{RelativePath: "main.go", SizeBytes: 10}, "package main\nfunc hello() {}\n"))

		s, _, _ := newTestServer(t, Options{Content: content})
		rec := doJSON(t, s.Handler(), http.MethodGet, "/api/search?q=hello", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(1), body["total_matches"])

		rec = doJSON(t, s.Handler(), http.MethodGet, "/api/search", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_Server_CORSPreflight(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})

	rec := doJSON(t, s.Handler(), http.MethodOptions, "/api/write", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
