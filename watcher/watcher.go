package watcher

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
)

// RenameWindow is how long a Rename waits for its matching Create.
const RenameWindow = 100 * time.Millisecond

// Rules is the ignore engine as seen by the watcher. *ignore.Matcher implements it.
type Rules interface {
	index.Gate
	IsRuleFile(relativePath string) bool
	Reload()
}

// Publisher receives the change events produced by the watcher.
type Publisher interface {
	Publish(events ...notify.Event)
}

// Watcher provides recursive file system watching. It keeps the file index
// current and publishes one change event per index mutation.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	applier   *Applier
	rules     Rules
	publisher Publisher
	rootDir   string
	logger    *slog.Logger

	pendingRename string
	renameTimer   *time.Timer
}

// NewWatcher creates a recursive file watcher on the given root directory.
// It registers all non-ignored subdirectories for watching.
func NewWatcher(rootDir string, fileIndex *index.FileIndex, rules Rules, publisher Publisher, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		applier: &Applier{
			RootDir: rootDir,
			Gate:    rules,
			Index:   fileIndex,
			Logger:  logger,
		},
		rules:     rules,
		publisher: publisher,
		rootDir:   rootDir,
		logger:    logger,
	}

	if err := w.watchTree(rootDir); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// watchTree adds dir and every non-ignored directory below it.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootDir {
			if relPath, ok := w.relative(path); !ok || w.rules.ShouldIgnoreDir(relPath) {
				return filepath.SkipDir
			}
		}
		if watchErr := w.fsWatcher.Add(path); watchErr != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", watchErr)
		}
		return nil
	})
}

// Run processes file system events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stopRenameTimer()

	for {
		var renameExpired <-chan time.Time
		if w.renameTimer != nil {
			renameExpired = w.renameTimer.C
		}

		select {
		case <-ctx.Done():
			w.flushRename()
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				w.flushRename()
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-renameExpired:
			w.renameTimer = nil
			w.flushRename()
		}
	}
}

// handleEvent routes a single fsnotify event to the applier. A Rename is held
// back until the next Create so the pair becomes one move.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, ok := w.relative(event.Name)
	if !ok {
		return
	}

	if w.rules.IsRuleFile(relPath) && !event.Has(fsnotify.Chmod) {
		w.rules.Reload()
		w.logger.Info("reloaded ignore rules", "trigger", relPath)
	}

	switch {
	case event.Has(fsnotify.Create):
		if w.pendingRename != "" && !renamePair(w.pendingRename, relPath) {
			w.flushRename()
		}
		if w.pendingRename != "" {
			from := w.pendingRename
			w.pendingRename = ""
			w.stopRenameTimer()
			w.watchIfDir(event.Name, relPath)
			w.apply(RawEvent{Op: OpRename, From: from, Path: relPath})
			return
		}
		w.watchIfDir(event.Name, relPath)
		w.apply(RawEvent{Op: OpCreate, Path: relPath})

	case event.Has(fsnotify.Write):
		w.apply(RawEvent{Op: OpWrite, Path: relPath})

	case event.Has(fsnotify.Remove):
		w.apply(RawEvent{Op: OpRemove, Path: relPath})

	case event.Has(fsnotify.Rename):
		w.flushRename()
		w.pendingRename = relPath
		w.renameTimer = time.NewTimer(RenameWindow)
	}
}

// flushRename turns an unpaired Rename into a removal. Excluded directories
// are never watched, so a move into one never pairs and is published as
// Deleted rather than Renamed.
func (w *Watcher) flushRename() {
	if w.pendingRename == "" {
		return
	}
	from := w.pendingRename
	w.pendingRename = ""
	w.stopRenameTimer()
	w.apply(RawEvent{Op: OpRemove, Path: from})
}

// renamePair reports whether a Create at toPath can complete a Rename of
// fromPath: both sit in the same directory or share a base name.
func renamePair(fromPath, toPath string) bool {
	return path.Dir(fromPath) == path.Dir(toPath) || path.Base(fromPath) == path.Base(toPath)
}

func (w *Watcher) stopRenameTimer() {
	if w.renameTimer != nil {
		w.renameTimer.Stop()
		w.renameTimer = nil
	}
}

func (w *Watcher) watchIfDir(absPath, relPath string) {
	info, err := os.Stat(absPath)
	if err != nil || !info.IsDir() || w.rules.ShouldIgnoreDir(relPath) {
		return
	}
	if err := w.watchTree(absPath); err != nil {
		w.logger.Warn("failed to watch new directory", "path", relPath, "error", err)
	}
}

func (w *Watcher) apply(ev RawEvent) {
	events := w.applier.Apply(ev)
	if len(events) == 0 {
		return
	}
	for _, e := range events {
		w.logger.Debug("index changed", "kind", e.Kind, "path", e.Path, "from", e.From)
	}
	w.publisher.Publish(events...)
}

// relative converts an absolute event path to a root-relative slash path.
// Paths outside the root and the root itself are rejected.
func (w *Watcher) relative(absPath string) (string, bool) {
	relPath, err := filepath.Rel(w.rootDir, absPath)
	if err != nil || relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(relPath), true
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}
