// Package project owns one served root: its ignore rules, file index and
// change hub. Request handlers and the watcher share a *Project instead of
// global state, so several roots can be served side by side.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lexandro/codesync/ignore"
	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
)

// DefaultCacheEntries bounds the file content cache.
const DefaultCacheEntries = 256

var (
	// ErrInvalidPath is returned for empty, absolute or root-escaping paths.
	ErrInvalidPath = errors.New("invalid path")
	// ErrExcluded is returned for paths removed from consideration by ignore rules.
	ErrExcluded = errors.New("path is excluded")
	// ErrNotFound is returned when the target does not exist on disk.
	ErrNotFound = errors.New("file not found")
	// ErrTooLarge is returned when a file exceeds the configured size limit.
	ErrTooLarge = errors.New("file too large")
)

// Options configures a Project.
type Options struct {
	RootDir      string
	Matcher      *ignore.Matcher
	Hub          *notify.Hub // created when nil
	CacheEntries int
	Logger       *slog.Logger
}

// Project is the file index subsystem for one root directory.
type Project struct {
	rootDir string
	matcher *ignore.Matcher
	files   *index.FileIndex
	hub     *notify.Hub
	scanner *index.Scanner
	cache   *lru.Cache[string, cachedFile]
	logger  *slog.Logger
}

type cachedFile struct {
	size    int64
	modTime time.Time
	content []byte
}

// New creates an empty project. Call Rescan to populate the index.
func New(options Options) (*Project, error) {
	if options.RootDir == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if options.Matcher == nil {
		return nil, fmt.Errorf("ignore matcher is required")
	}
	if options.Hub == nil {
		options.Hub = notify.NewHub(0)
	}
	if options.CacheEntries <= 0 {
		options.CacheEntries = DefaultCacheEntries
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	cache, err := lru.New[string, cachedFile](options.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}

	return &Project{
		rootDir: options.RootDir,
		matcher: options.Matcher,
		files:   index.NewFileIndex(),
		hub:     options.Hub,
		scanner: &index.Scanner{
			RootDir: options.RootDir,
			Gate:    options.Matcher,
			Logger:  options.Logger,
		},
		cache:  cache,
		logger: options.Logger,
	}, nil
}

// RootDir returns the absolute project root.
func (p *Project) RootDir() string { return p.rootDir }

// Index returns the underlying file index.
func (p *Project) Index() *index.FileIndex { return p.files }

// Hub returns the change hub events are published on.
func (p *Project) Hub() *notify.Hub { return p.hub }

// Matcher returns the project's ignore rules.
func (p *Project) Matcher() *ignore.Matcher { return p.matcher }

// Rescan rebuilds the index from disk. On error the previous index is kept.
func (p *Project) Rescan(ctx context.Context) (index.ScanResult, error) {
	result, err := p.scanner.ScanInto(ctx, p.files)
	if err != nil {
		return result, err
	}
	p.cache.Purge()
	p.logger.Info("index built",
		"files", len(result.Entries),
		"totalSize", result.TotalSize,
		"oversized", result.Oversized,
		"duration", result.Duration,
	)
	return result, nil
}

// Scan walks the root with the current rules without touching the index.
func (p *Project) Scan(ctx context.Context) (index.ScanResult, error) {
	return p.scanner.Scan(ctx)
}

// ListFiles returns a snapshot of every indexed entry in insertion order.
func (p *Project) ListFiles() []index.Entry {
	return p.files.AllFiles()
}

// Lookup returns the entry for a relative path.
func (p *Project) Lookup(relPath string) (index.Entry, bool) {
	return p.files.GetFile(ignore.NormalizePath(relPath))
}

// Subscribe returns a new change subscription. The caller must Close it.
func (p *Project) Subscribe() *notify.Subscription {
	return p.hub.Subscribe()
}

// IsExcluded reports whether relPath is removed from consideration by the ignore rules.
func (p *Project) IsExcluded(relPath string) bool {
	return p.matcher.IsExcluded(ignore.NormalizePath(relPath))
}

// RecordWrite updates the index after a successful write to relPath and
// publishes the resulting event. Ineligible paths are dropped from the index
// instead. A write matching the indexed stat publishes nothing.
func (p *Project) RecordWrite(relPath string, size int64, modTime time.Time) []notify.Event {
	relPath = ignore.NormalizePath(relPath)
	p.cache.Remove(relPath)
	entry := index.Entry{RelativePath: relPath, SizeBytes: size, ModTime: modTime}
	eligible := p.matcher.IsValidFile(relPath) && !p.matcher.IsFileTooLarge(size)

	var events []notify.Event
	p.files.Update(func(tx *index.Tx) {
		current, indexed := tx.Get(relPath)
		switch {
		case !eligible:
			if indexed {
				tx.Delete(relPath)
				events = append(events, notify.Event{Kind: notify.Deleted, Path: relPath})
			}
		case indexed && current.SameStat(entry):
		case indexed:
			tx.Put(entry)
			events = append(events, notify.Event{Kind: notify.Modified, Path: relPath})
		default:
			tx.Put(entry)
			events = append(events, notify.Event{Kind: notify.Created, Path: relPath})
		}
	})
	p.hub.Publish(events...)
	return events
}

// RecordDelete removes relPath from the index and publishes one Deleted event
// per removed entry. When relPath was a directory, every entry beneath it is
// removed too.
func (p *Project) RecordDelete(relPath string) []notify.Event {
	relPath = ignore.NormalizePath(relPath)

	var removed []index.Entry
	p.files.Update(func(tx *index.Tx) {
		if entry, ok := tx.Delete(relPath); ok {
			removed = append(removed, entry)
		}
		removed = append(removed, tx.DeletePrefix(relPath)...)
	})

	events := make([]notify.Event, 0, len(removed))
	for _, entry := range removed {
		p.cache.Remove(entry.RelativePath)
		events = append(events, notify.Event{Kind: notify.Deleted, Path: entry.RelativePath})
	}
	p.hub.Publish(events...)
	return events
}

// RecordRename moves index entries from one path to another after a
// successful rename and publishes one Renamed event per moved entry.
// Directory renames move every entry beneath fromPath.
func (p *Project) RecordRename(fromPath, toPath string) []notify.Event {
	fromPath = ignore.NormalizePath(fromPath)
	toPath = ignore.NormalizePath(toPath)

	var events []notify.Event
	p.files.Update(func(tx *index.Tx) {
		moved := tx.DeletePrefix(fromPath)
		if entry, ok := tx.Delete(fromPath); ok {
			moved = append(moved, entry)
		}
		for _, entry := range moved {
			p.cache.Remove(entry.RelativePath)
			target := toPath + strings.TrimPrefix(entry.RelativePath, fromPath)
			events = append(events, notify.Event{Kind: notify.Renamed, Path: target, From: entry.RelativePath})
			if !p.matcher.IsValidFile(target) {
				continue
			}
			entry.RelativePath = target
			tx.Put(entry)
		}
	})
	p.hub.Publish(events...)
	return events
}

// Resolve validates a client-supplied relative path and returns its absolute
// location and clean index key. Excluded paths fail with ErrExcluded.
func (p *Project) Resolve(relPath string) (string, string, error) {
	cleanPath, err := CleanPath(relPath)
	if err != nil {
		return "", "", err
	}
	if p.matcher.IsExcluded(cleanPath) {
		return "", "", fmt.Errorf("%w: %s", ErrExcluded, cleanPath)
	}
	return filepath.Join(p.rootDir, filepath.FromSlash(cleanPath)), cleanPath, nil
}

// CleanPath normalizes relPath and rejects paths that are empty, absolute,
// or escape the root.
func CleanPath(relPath string) (string, error) {
	if strings.TrimSpace(relPath) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	slashed := strings.ReplaceAll(relPath, "\\", "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(relPath) || filepath.VolumeName(relPath) != "" {
		return "", fmt.Errorf("%w: %s is absolute", ErrInvalidPath, relPath)
	}

	cleaned := path.Clean(slashed)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %s refers to the root", ErrInvalidPath, relPath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s escapes the project root", ErrInvalidPath, relPath)
	}
	return cleaned, nil
}
