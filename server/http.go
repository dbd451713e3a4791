package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
	"github.com/lexandro/codesync/project"
)

const (
	// DefaultEventTimeout is how long a stream waits for an event before
	// sending a keep-alive.
	DefaultEventTimeout = 5 * time.Second
	// DefaultExecTimeout bounds the wall-clock time of /api/exec commands.
	DefaultExecTimeout = 30 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	Project      *project.Project
	Content      *index.ContentIndex // nil disables /api/search
	MCP          http.Handler        // mounted at /mcp when set
	EventTimeout time.Duration
	ExecTimeout  time.Duration
	DisableExec  bool
	Watching     bool
	Logger       *slog.Logger
}

// Server serves the file API, change streams and the MCP endpoint for one project.
type Server struct {
	project      *project.Project
	content      *index.ContentIndex
	mcp          http.Handler
	eventTimeout time.Duration
	execTimeout  time.Duration
	disableExec  bool
	watching     bool
	logger       *slog.Logger
}

// New creates a server. Zero timeouts fall back to the defaults.
func New(options Options) *Server {
	if options.EventTimeout <= 0 {
		options.EventTimeout = DefaultEventTimeout
	}
	if options.ExecTimeout <= 0 {
		options.ExecTimeout = DefaultExecTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Server{
		project:      options.Project,
		content:      options.Content,
		mcp:          options.MCP,
		eventTimeout: options.EventTimeout,
		execTimeout:  options.ExecTimeout,
		disableExec:  options.DisableExec,
		watching:     options.Watching,
		logger:       options.Logger,
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	compressed := func(h http.HandlerFunc) http.Handler {
		return gzhttp.GzipHandler(h)
	}

	mux.Handle("GET /api/health", compressed(s.handleHealth))
	mux.Handle("GET /api/list", compressed(s.handleList))
	mux.Handle("GET /api/search", compressed(s.handleSearch))
	mux.Handle("POST /api/read", compressed(s.handleRead))
	mux.Handle("POST /api/batch-read", compressed(s.handleBatchRead))
	mux.Handle("POST /api/write", compressed(s.handleWrite))
	mux.Handle("POST /api/delete", compressed(s.handleDelete))
	mux.Handle("POST /api/move", compressed(s.handleMove))
	mux.Handle("POST /api/exec", compressed(s.handleExec))

	// Streams are not compressed; gzip would buffer keep-alives.
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/events/ws", s.handleEventsWS)

	if s.mcp != nil {
		mux.Handle("/mcp", s.mcp)
	}

	return Chain(mux,
		RequestID,
		Logger(s.logger),
		Recover(s.logger),
		CORS,
	)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type fileJSON struct {
	Path  string  `json:"path"`
	Size  int64   `json:"size"`
	MTime float64 `json:"mtime"`
}

func toFileJSON(entries []index.Entry) []fileJSON {
	out := make([]fileJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, fileJSON{Path: e.RelativePath, Size: e.SizeBytes, MTime: notify.UnixSeconds(e.ModTime)})
	}
	return out
}

type contentJSON struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type statusJSON struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"root":   filepath.Base(s.project.RootDir()),
		"capabilities": map[string]bool{
			"exec":   !s.disableExec,
			"watch":  s.watching,
			"search": s.content != nil,
		},
		"indexed_files": s.project.Index().FileCount(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries := s.project.ListFiles()
	if glob := r.URL.Query().Get("glob"); glob != "" {
		matched, err := s.project.Index().SearchByGlob(glob, 0)
		if err != nil {
			writeError(w, validationError(err.Error()))
			return
		}
		entries = matched
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": toFileJSON(entries)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.content == nil {
		writeError(w, &apiError{Type: ErrorTypeUnavailable, Message: "content search is disabled", Code: http.StatusServiceUnavailable})
		return
	}

	q := r.URL.Query()
	options := index.SearchOptions{
		Query:    q.Get("q"),
		FilePath: q.Get("path"),
		FileGlob: q.Get("glob"),
	}
	if options.Query == "" {
		writeError(w, validationError("missing query parameter q"))
		return
	}
	options.MaxResults, _ = strconv.Atoi(q.Get("max"))
	options.ContextLines, _ = strconv.Atoi(q.Get("context"))

	results, total, err := s.content.Search(options)
	if err != nil {
		writeError(w, validationError(err.Error()))
		return
	}
	if results == nil {
		results = []index.ContentSearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "total_matches": total})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" {
		writeError(w, validationError("No path"))
		return
	}

	content, entry, err := s.project.ReadFile(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentJSON{Path: entry.RelativePath, Content: textContent(content)})
}

func (s *Server) handleBatchRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	files := make([]contentJSON, 0, len(req.Paths))
	for _, p := range req.Paths {
		content, entry, err := s.project.ReadFile(p)
		if err != nil {
			s.logger.Debug("batch-read skipped file", "path", p, "error", err)
			continue
		}
		files = append(files, contentJSON{Path: entry.RelativePath, Content: textContent(content)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string  `json:"path"`
		Content *string `json:"content"`
	}
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" || req.Content == nil {
		writeError(w, validationError("Missing args"))
		return
	}

	entry, err := s.project.WriteFile(req.Path, []byte(*req.Content))
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("file written", "path", entry.RelativePath, "size", entry.SizeBytes)
	writeJSON(w, http.StatusOK, statusJSON{Status: "ok", Path: entry.RelativePath})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" {
		writeError(w, validationError("No path"))
		return
	}

	removed, err := s.project.Delete(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("path deleted", "path", req.Path, "entries", len(removed))
	writeJSON(w, http.StatusOK, statusJSON{Status: "ok"})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
	}
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" || req.Destination == "" {
		writeError(w, validationError("Missing args"))
		return
	}

	if err := s.project.Move(req.Source, req.Destination); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("path moved", "from", req.Source, "to", req.Destination)
	writeJSON(w, http.StatusOK, statusJSON{Status: "ok"})
}

// decode reads a JSON request body. Bodies are capped a little above the
// file size limit so a maximal write still fits.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	limit := s.project.Matcher().MaxFileSizeBytes()*2 + 1<<20
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return validationError("empty request body")
		}
		return validationError(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// textContent decodes file bytes for a JSON response, replacing invalid UTF-8.
func textContent(data []byte) string {
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
