package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lexandro/codesync/ignore"
	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
	"github.com/lexandro/codesync/project"
)

func startTestWatcher(t *testing.T, cfg ignore.Config) (string, *index.FileIndex, *notify.Subscription) {
	t.Helper()
	root := t.TempDir()
	// Resolve symlinked temp dirs so event paths stay under root.
	root, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}

	fileIndex := index.NewFileIndex()
	hub := notify.NewHub(0)
	sub := hub.Subscribe()
	t.Cleanup(sub.Close)

	matcher := ignore.NewMatcher(ignore.MatcherOptions{RootDir: root, Config: cfg})
	w, err := NewWatcher(root, fileIndex, matcher, hub, testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	return root, fileIndex, sub
}

// waitFor returns the first event for path, skipping others.
func waitFor(t *testing.T, sub *notify.Subscription, path string, kind notify.Kind) notify.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		event, ok, err := sub.Next(context.Background(), time.Until(deadline))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok && event.Path == path && event.Kind == kind {
			return event
		}
	}
	t.Fatalf("timed out waiting for %s %s", kind, path)
	return notify.Event{}
}

func Test_Watcher_CreateAndDelete(t *testing.T) {
	root, fileIndex, sub := startTestWatcher(t, ignore.Config{})

	target := filepath.Join(root, "hello.txt")
	if err := os.WriteFile(target, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, "hello.txt", notify.Created)
	if _, ok := fileIndex.GetFile("hello.txt"); !ok {
		t.Error("expected hello.txt in the index")
	}

	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, "hello.txt", notify.Deleted)
	if _, ok := fileIndex.GetFile("hello.txt"); ok {
		t.Error("expected hello.txt to leave the index")
	}
}

func Test_Watcher_NewDirectoryIsWatched(t *testing.T) {
	root, fileIndex, sub := startTestWatcher(t, ignore.Config{})

	dir := filepath.Join(root, "pkg")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package pkg"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, "pkg/a.go", notify.Created)
	if _, ok := fileIndex.GetFile("pkg/a.go"); !ok {
		t.Error("expected pkg/a.go in the index")
	}
}

func Test_Watcher_RenamePairsIntoOneEvent(t *testing.T) {
	root, fileIndex, sub := startTestWatcher(t, ignore.Config{})

	oldPath := filepath.Join(root, "old.txt")
	if err := os.WriteFile(oldPath, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, "old.txt", notify.Created)

	if err := os.Rename(oldPath, filepath.Join(root, "new.txt")); err != nil {
		t.Fatal(err)
	}
	event := waitFor(t, sub, "new.txt", notify.Renamed)
	if event.From != "old.txt" {
		t.Errorf("expected rename from old.txt, got %q", event.From)
	}
	if _, ok := fileIndex.GetFile("old.txt"); ok {
		t.Error("expected old.txt to leave the index")
	}
	if _, ok := fileIndex.GetFile("new.txt"); !ok {
		t.Error("expected new.txt in the index")
	}
}

func Test_renamePair(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{"old.txt", "new.txt", true},
		{"src/a.go", "src/b.go", true},
		{"src/a.go", "lib/a.go", true},
		{"a.txt", "sub/c.txt", false},
		{"src/a.go", "lib/b.go", false},
	}
	for _, tt := range tests {
		if got := renamePair(tt.from, tt.to); got != tt.want {
			t.Errorf("renamePair(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func Test_Watcher_MoveOutDoesNotPairWithUnrelatedCreate(t *testing.T) {
	root, fileIndex, sub := startTestWatcher(t, ignore.Config{})
	outside := t.TempDir()

	if err := os.Mkdir(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, sub, "a.txt", notify.Created)

	if err := os.Rename(filepath.Join(root, "a.txt"), filepath.Join(outside, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "c.txt"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, sub, "a.txt", notify.Deleted)
	waitFor(t, sub, "sub/c.txt", notify.Created)
	if _, ok := fileIndex.GetFile("sub/c.txt"); !ok {
		t.Error("expected sub/c.txt in the index")
	}
}

// collect gathers every event published within d.
func collect(t *testing.T, sub *notify.Subscription, d time.Duration) []notify.Event {
	t.Helper()
	var events []notify.Event
	deadline := time.Now().Add(d)
	for remaining := d; remaining > 0; remaining = time.Until(deadline) {
		event, ok, err := sub.Next(context.Background(), remaining)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			events = append(events, event)
		}
	}
	return events
}

func count(events []notify.Event, kind notify.Kind, path string) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind && e.Path == path {
			n++
		}
	}
	return n
}

func Test_Watcher_ProjectMutationsPublishOnce(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p, err := project.New(project.Options{
		RootDir: root,
		Matcher: ignore.NewMatcher(ignore.MatcherOptions{RootDir: root}),
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	sub := p.Subscribe()
	t.Cleanup(sub.Close)

	w, err := NewWatcher(root, p.Index(), p.Matcher(), p.Hub(), testLogger())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)

	if _, err := p.WriteFile("new.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	events := collect(t, sub, 300*time.Millisecond)
	if n := count(events, notify.Created, "new.txt"); n != 1 {
		t.Errorf("expected exactly one Created after write, got %d in %+v", n, events)
	}
	if n := count(events, notify.Deleted, "new.txt"); n != 0 {
		t.Errorf("expected no Deleted after write, got %d in %+v", n, events)
	}

	if _, err := p.Delete("new.txt"); err != nil {
		t.Fatal(err)
	}
	events = collect(t, sub, 300*time.Millisecond)
	if n := count(events, notify.Deleted, "new.txt"); n != 1 {
		t.Errorf("expected exactly one Deleted after delete, got %d in %+v", n, events)
	}
	if n := count(events, notify.Created, "new.txt"); n != 0 {
		t.Errorf("expected no Created after delete, got %d in %+v", n, events)
	}
}
