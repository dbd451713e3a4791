package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	OpCreate EventOp = iota
	OpWrite
	OpRemove
	OpRename
)

func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	}
	return "unknown"
}

// RawEvent is a file system change expressed in root-relative, slash-separated
// paths. From is only set for OpRename.
type RawEvent struct {
	Op   EventOp
	Path string
	From string
}

// Applier turns raw file system events into index mutations and the change
// events that describe them.
type Applier struct {
	RootDir string
	Gate    index.Gate
	Index   *index.FileIndex
	Logger  *slog.Logger
}

// Apply updates the index for ev and returns the resulting change events.
// Paths that fail the gate and are not indexed produce nothing.
func (a *Applier) Apply(ev RawEvent) []notify.Event {
	switch ev.Op {
	case OpCreate, OpWrite:
		return a.applyUpsert(ev.Path)
	case OpRemove:
		return a.applyRemove(ev.Path)
	case OpRename:
		return a.applyRename(ev.From, ev.Path)
	}
	return nil
}

func (a *Applier) applyUpsert(relPath string) []notify.Event {
	absPath := a.absPath(relPath)
	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		if a.Gate.ShouldIgnoreDir(relPath) {
			return nil
		}
		var events []notify.Event
		for _, child := range a.listFiles(relPath) {
			events = append(events, a.applyUpsert(child)...)
		}
		return events
	}

	var events []notify.Event
	a.Index.Update(func(tx *index.Tx) {
		current, indexed := tx.Get(relPath)
		if !a.Gate.IsValidFile(relPath) {
			if indexed {
				tx.Delete(relPath)
				events = append(events, notify.Event{Kind: notify.Deleted, Path: relPath})
			}
			return
		}

		entry, ok := a.statEntry(relPath)
		if !ok {
			if _, removed := tx.Delete(relPath); removed {
				events = append(events, notify.Event{Kind: notify.Deleted, Path: relPath})
			}
			return
		}

		if indexed && current.SameStat(entry) {
			return
		}
		kind := notify.Modified
		if tx.Put(entry) {
			kind = notify.Created
		}
		events = append(events, notify.Event{Kind: kind, Path: relPath})
	})
	return events
}

func (a *Applier) applyRemove(relPath string) []notify.Event {
	var events []notify.Event
	a.Index.Update(func(tx *index.Tx) {
		if _, ok := tx.Delete(relPath); ok {
			events = append(events, notify.Event{Kind: notify.Deleted, Path: relPath})
		}
		for _, entry := range tx.DeletePrefix(relPath) {
			events = append(events, notify.Event{Kind: notify.Deleted, Path: entry.RelativePath})
		}
	})
	return events
}

func (a *Applier) applyRename(fromPath, toPath string) []notify.Event {
	if fromPath == "" {
		return a.applyUpsert(toPath)
	}
	if info, err := os.Stat(a.absPath(toPath)); err == nil && info.IsDir() {
		return a.applyDirRename(fromPath, toPath)
	}
	toEligible := a.Gate.IsValidFile(toPath)

	var events []notify.Event
	a.Index.Update(func(tx *index.Tx) {
		// fromPath may be a directory whose destination is already gone.
		for _, entry := range tx.DeletePrefix(fromPath) {
			events = append(events, notify.Event{Kind: notify.Deleted, Path: entry.RelativePath})
		}
		_, wasIndexed := tx.Delete(fromPath)

		var entry index.Entry
		var onDisk bool
		if toEligible {
			entry, onDisk = a.statEntry(toPath)
		}
		current, toIndexed := tx.Get(toPath)

		switch {
		case onDisk:
			if !wasIndexed && toIndexed && current.SameStat(entry) {
				return
			}
			tx.Put(entry)
			events = append(events, notify.Event{Kind: notify.Renamed, Path: toPath, From: fromPath})
		case !toEligible:
			if wasIndexed {
				events = append(events, notify.Event{Kind: notify.Renamed, Path: toPath, From: fromPath})
			}
		default:
			// The destination vanished before it could be stat'ed.
			if _, removed := tx.Delete(toPath); removed {
				events = append(events, notify.Event{Kind: notify.Deleted, Path: toPath})
			}
			if wasIndexed {
				events = append(events, notify.Event{Kind: notify.Deleted, Path: fromPath})
			}
		}
	})
	return events
}

// applyDirRename moves every entry under fromDir to its new location and
// indexes whatever eligible files the destination holds.
func (a *Applier) applyDirRename(fromDir, toDir string) []notify.Event {
	var children []string
	if !a.Gate.ShouldIgnoreDir(toDir) {
		children = a.listFiles(toDir)
	}

	var events []notify.Event
	a.Index.Update(func(tx *index.Tx) {
		moved := make(map[string]bool)
		for _, old := range tx.DeletePrefix(fromDir) {
			moved[old.RelativePath] = true
		}

		for _, child := range children {
			oldPath := path.Join(fromDir, child[len(toDir)+1:])
			entry, ok := a.statEntry(child)
			if !ok || !a.Gate.IsValidFile(child) {
				continue
			}
			if current, indexed := tx.Get(child); indexed && !moved[oldPath] && current.SameStat(entry) {
				continue
			}
			tx.Put(entry)
			if moved[oldPath] {
				delete(moved, oldPath)
				events = append(events, notify.Event{Kind: notify.Renamed, Path: child, From: oldPath})
			} else {
				events = append(events, notify.Event{Kind: notify.Created, Path: child})
			}
		}
		for oldPath := range moved {
			events = append(events, notify.Event{Kind: notify.Deleted, Path: oldPath})
		}
	})
	return events
}

// statEntry stats relPath and returns an entry when it is a regular file
// within the size limit.
func (a *Applier) statEntry(relPath string) (index.Entry, bool) {
	info, err := os.Stat(a.absPath(relPath))
	if err != nil {
		a.Logger.Debug("stat failed, treating as deleted", "path", relPath, "error", err)
		return index.Entry{}, false
	}
	if !info.Mode().IsRegular() || a.Gate.IsFileTooLarge(info.Size()) {
		return index.Entry{}, false
	}
	return index.Entry{RelativePath: relPath, SizeBytes: info.Size(), ModTime: info.ModTime()}, true
}

// listFiles returns the relative paths of files under dir, skipping pruned
// subdirectories.
func (a *Applier) listFiles(dir string) []string {
	var files []string
	root := a.absPath(dir)
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(a.RootDir, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p != root && a.Gate.ShouldIgnoreDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files
}

func (a *Applier) absPath(relPath string) string {
	return filepath.Join(a.RootDir, filepath.FromSlash(relPath))
}
