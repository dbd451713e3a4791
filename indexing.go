package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/language"
	"github.com/lexandro/codesync/notify"
	"github.com/lexandro/codesync/project"
	"github.com/lexandro/codesync/watcher"
)

const (
	// contentDebounce is the quiet period before changed files are re-read.
	contentDebounce = 200 * time.Millisecond
	contentWorkers  = 8
)

// contentIndexer keeps the bleve index in step with the file index. It is
// driven by change events, so search results may briefly lag the file index.
type contentIndexer struct {
	project *project.Project
	content *index.ContentIndex
	logger  *slog.Logger
}

// populate indexes every file whose content is not current and drops
// documents for paths that left the file index. Returns the number of
// files (re)indexed.
func (c *contentIndexer) populate(ctx context.Context) int {
	var indexedCount atomic.Int64
	jobs := make(chan index.Entry, 100)

	var wg sync.WaitGroup
	for i := 0; i < contentWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				if c.indexFile(entry.RelativePath) {
					indexedCount.Add(1)
				}
			}
		}()
	}

	entries := c.project.ListFiles()
feed:
	for _, entry := range entries {
		if c.content.IsCurrent(entry) {
			continue
		}
		select {
		case jobs <- entry:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for _, relPath := range c.content.Paths() {
		if _, ok := c.project.Lookup(relPath); !ok {
			c.remove(relPath)
		}
	}
	return int(indexedCount.Load())
}

// run applies change events from sub until ctx is cancelled. Paths are
// debounced so a burst of writes to one file reads it once.
func (c *contentIndexer) run(ctx context.Context, sub *notify.Subscription) {
	defer sub.Close()

	debouncer := watcher.NewDebouncer[string](contentDebounce)
	defer debouncer.Stop()

	go func() {
		for {
			event, ok, err := sub.Next(ctx, 0)
			if err != nil {
				return
			}
			if !ok {
				continue
			}
			if event.From != "" {
				debouncer.Add(event.From, event.From)
			}
			debouncer.Add(event.Path, event.Path)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case paths := <-debouncer.Output():
			for _, relPath := range paths {
				c.reconcile(relPath)
			}
			c.logger.Debug("content index updated", "files", len(paths), "dropped", sub.Dropped())
		}
	}
}

// reconcile makes the content index agree with the file index for relPath.
func (c *contentIndexer) reconcile(relPath string) {
	entry, ok := c.project.Lookup(relPath)
	if !ok {
		c.remove(relPath)
		return
	}
	if c.content.IsCurrent(entry) {
		return
	}
	c.indexFile(relPath)
}

// indexFile reads relPath and indexes it. Binary and unreadable files are
// removed from the content index instead.
func (c *contentIndexer) indexFile(relPath string) bool {
	content, entry, err := c.project.ReadFile(relPath)
	if err != nil {
		c.logger.Debug("skipped content indexing", "path", relPath, "error", err)
		c.remove(relPath)
		return false
	}
	if language.IsBinaryContent(content) {
		c.remove(relPath)
		return false
	}
	if err := c.content.IndexFile(entry, string(content)); err != nil {
		c.logger.Warn("failed to index content", "path", relPath, "error", err)
		return false
	}
	return true
}

func (c *contentIndexer) remove(relPath string) {
	if err := c.content.RemoveFile(relPath); err != nil {
		c.logger.Debug("failed to remove content", "path", relPath, "error", err)
	}
}
