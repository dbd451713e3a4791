package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexandro/codesync/ignore"
	"github.com/lexandro/codesync/notify"
)

func newTestProject(t *testing.T, cfg ignore.Config) (*Project, string) {
	t.Helper()
	root := t.TempDir()
	p, err := New(Options{
		RootDir: root,
		Matcher: ignore.NewMatcher(ignore.MatcherOptions{
			RootDir:          root,
			Config:           cfg,
			MaxFileSizeBytes: 64,
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return p, root
}

func writeTestFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	absPath := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func Test_CleanPath(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		invalid bool
	}{
		{"src/main.go", "src/main.go", false},
		{"./src//main.go", "src/main.go", false},
		{"src\\win\\file.txt", "src/win/file.txt", false},
		{"a/../b.txt", "b.txt", false},
		{"", "", true},
		{"   ", "", true},
		{".", "", true},
		{"/etc/passwd", "", true},
		{"../outside.txt", "", true},
		{"a/../../outside.txt", "", true},
	}

	for _, tt := range tests {
		got, err := CleanPath(tt.input)
		if tt.invalid {
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("CleanPath(%q): expected ErrInvalidPath, got %v", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("CleanPath(%q): unexpected error %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func Test_Project_ResolveRejectsExcluded(t *testing.T) {
	p, _ := newTestProject(t, ignore.DefaultConfig())

	if _, _, err := p.Resolve("node_modules/pkg/index.js"); !errors.Is(err, ErrExcluded) {
		t.Errorf("expected ErrExcluded, got %v", err)
	}
	absPath, cleanPath, err := p.Resolve("src/app.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanPath != "src/app.go" || absPath != filepath.Join(p.RootDir(), "src", "app.go") {
		t.Errorf("unexpected resolution %q %q", absPath, cleanPath)
	}
}

func Test_Project_RescanAndLookup(t *testing.T) {
	p, root := newTestProject(t, ignore.DefaultConfig())
	writeTestFile(t, root, "a.txt", "0123456789")
	writeTestFile(t, root, "node_modules/x.js", "x")

	if _, err := p.Rescan(context.Background()); err != nil {
		t.Fatalf("rescan failed: %v", err)
	}

	entry, ok := p.Lookup("a.txt")
	if !ok || entry.SizeBytes != 10 {
		t.Errorf("expected a.txt with size 10, got %+v ok=%v", entry, ok)
	}
	if len(p.ListFiles()) != 1 {
		t.Errorf("expected 1 indexed file, got %d", len(p.ListFiles()))
	}
	if !p.IsExcluded("node_modules/x.js") {
		t.Error("expected node_modules/x.js to be excluded")
	}
}

func Test_Project_WriteCreatesParentsAndIndexes(t *testing.T) {
	p, root := newTestProject(t, ignore.Config{})

	entry, err := p.WriteFile("deep/nested/file.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if entry.SizeBytes != 5 {
		t.Errorf("expected size 5, got %d", entry.SizeBytes)
	}

	data, err := os.ReadFile(filepath.Join(root, "deep", "nested", "file.txt"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected file content %q err=%v", data, err)
	}
	if _, ok := p.Lookup("deep/nested/file.txt"); !ok {
		t.Error("expected written file in the index")
	}
}

func Test_Project_WriteRejectsInvalidPaths(t *testing.T) {
	p, _ := newTestProject(t, ignore.DefaultConfig())

	if _, err := p.WriteFile("../escape.txt", []byte("x")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := p.WriteFile("build/out.txt", []byte("x")); !errors.Is(err, ErrExcluded) {
		t.Errorf("expected ErrExcluded, got %v", err)
	}
	if p.Index().FileCount() != 0 {
		t.Errorf("expected index untouched, got %d files", p.Index().FileCount())
	}
}

func Test_Project_ReadFile(t *testing.T) {
	p, root := newTestProject(t, ignore.Config{})
	writeTestFile(t, root, "a.txt", "first")

	content, entry, err := p.ReadFile("a.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(content) != "first" || entry.SizeBytes != 5 {
		t.Errorf("unexpected read %q %+v", content, entry)
	}

	// A change in size invalidates the cached content.
	writeTestFile(t, root, "a.txt", "second!")
	content, _, err = p.ReadFile("a.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(content) != "second!" {
		t.Errorf("expected refreshed content, got %q", content)
	}
}

func Test_Project_ReadFileErrors(t *testing.T) {
	p, root := newTestProject(t, ignore.Config{})
	writeTestFile(t, root, "big.txt", string(make([]byte, 100)))

	if _, _, err := p.ReadFile("missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := p.ReadFile("big.txt"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func Test_Project_DeleteDirectoryRemovesEntries(t *testing.T) {
	p, root := newTestProject(t, ignore.Config{})
	writeTestFile(t, root, "src/a.go", "a")
	writeTestFile(t, root, "src/sub/b.go", "b")
	writeTestFile(t, root, "keep.go", "k")
	if _, err := p.Rescan(context.Background()); err != nil {
		t.Fatal(err)
	}

	removed, err := p.Delete("src")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("expected 2 removed entries, got %d", len(removed))
	}
	if _, err := os.Stat(filepath.Join(root, "src")); !os.IsNotExist(err) {
		t.Errorf("expected src to be gone from disk, got %v", err)
	}
	if p.Index().FileCount() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", p.Index().FileCount())
	}

	if _, err := p.Delete("src"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func Test_Project_MoveUpdatesIndex(t *testing.T) {
	p, root := newTestProject(t, ignore.Config{})
	writeTestFile(t, root, "old.txt", "data")
	if _, err := p.Rescan(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := p.Move("old.txt", "moved/new.txt"); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if _, ok := p.Lookup("old.txt"); ok {
		t.Error("expected old.txt to leave the index")
	}
	if entry, ok := p.Lookup("moved/new.txt"); !ok || entry.SizeBytes != 4 {
		t.Errorf("expected moved/new.txt with size 4, got %+v ok=%v", entry, ok)
	}
}

func Test_Project_RecordWriteDropsIneligible(t *testing.T) {
	p, _ := newTestProject(t, ignore.Config{})
	now := time.Now()

	p.RecordWrite("notes.txt", 10, now)
	if _, ok := p.Lookup("notes.txt"); !ok {
		t.Fatal("expected notes.txt in the index")
	}

	p.RecordWrite("notes.txt", 1000, now)
	if _, ok := p.Lookup("notes.txt"); ok {
		t.Error("expected oversized write to drop the entry")
	}

	p.RecordWrite(".hidden", 1, now)
	if _, ok := p.Lookup(".hidden"); ok {
		t.Error("expected dotfile to stay out of the index")
	}
}

func Test_Project_SubscribeReceivesPublishedEvents(t *testing.T) {
	p, _ := newTestProject(t, ignore.Config{})
	sub := p.Subscribe()
	defer sub.Close()

	if p.Hub().Subscribers() != 1 {
		t.Errorf("expected 1 subscriber, got %d", p.Hub().Subscribers())
	}
	_, ok, err := sub.Next(context.Background(), 10*time.Millisecond)
	if err != nil || ok {
		t.Errorf("expected a timeout on an idle subscription, got ok=%v err=%v", ok, err)
	}
}

func Test_Project_WriteUnderHiddenDirAgreesWithRescan(t *testing.T) {
	p, _ := newTestProject(t, ignore.Config{})

	if _, err := p.WriteFile(".hidden/a.txt", []byte("x")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, afterWrite := p.Lookup(".hidden/a.txt")

	if _, err := p.Rescan(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, afterRescan := p.Lookup(".hidden/a.txt")

	if afterWrite || afterRescan {
		t.Errorf("expected .hidden/a.txt outside the index, got afterWrite=%v afterRescan=%v", afterWrite, afterRescan)
	}
}

func Test_Project_RecordMutationsPublishEvents(t *testing.T) {
	p, _ := newTestProject(t, ignore.Config{})
	sub := p.Subscribe()
	defer sub.Close()
	now := time.Now()

	p.RecordWrite("a.txt", 1, now)
	p.RecordWrite("a.txt", 1, now)
	p.RecordWrite("a.txt", 2, now)
	p.RecordRename("a.txt", "b.txt")
	p.RecordDelete("b.txt")
	p.RecordDelete("b.txt")

	want := []notify.Event{
		{Kind: notify.Created, Path: "a.txt"},
		{Kind: notify.Modified, Path: "a.txt"},
		{Kind: notify.Renamed, Path: "b.txt", From: "a.txt"},
		{Kind: notify.Deleted, Path: "b.txt"},
	}
	for i, w := range want {
		got, ok, err := sub.Next(context.Background(), time.Second)
		if err != nil || !ok {
			t.Fatalf("event %d: expected %s %s, got ok=%v err=%v", i, w.Kind, w.Path, ok, err)
		}
		if got.Kind != w.Kind || got.Path != w.Path || got.From != w.From {
			t.Errorf("event %d: expected %+v, got %+v", i, w, got)
		}
	}
	if _, ok, _ := sub.Next(context.Background(), 20*time.Millisecond); ok {
		t.Error("expected no further events")
	}
}
