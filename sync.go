package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
	"github.com/lexandro/codesync/project"
)

// SyncResult holds the outcome of a single sync verification run.
type SyncResult struct {
	MissingFiles  int // files on disk but not in index
	StaleFiles    int // files in index but not on disk
	ModifiedFiles int // files where size or ModTime differs
	Duration      time.Duration
}

// runPeriodicSync verifies index consistency at the given interval until ctx
// is cancelled. It catches changes the watcher missed, such as events dropped
// by an overflowing kernel queue.
func runPeriodicSync(ctx context.Context, interval time.Duration, p *project.Project, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("periodic sync started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("periodic sync stopped")
			return
		case <-ticker.C:
			result, err := performSyncVerification(ctx, p, logger)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warn("sync verification failed", "error", err)
				}
				continue
			}
			totalDiscrepancies := result.MissingFiles + result.StaleFiles + result.ModifiedFiles
			if totalDiscrepancies > 0 {
				logger.Info("sync verification complete",
					"missing", result.MissingFiles,
					"stale", result.StaleFiles,
					"modified", result.ModifiedFiles,
					"duration", result.Duration,
				)
			} else {
				logger.Debug("sync verification complete, index is in sync", "duration", result.Duration)
			}
		}
	}
}

// performSyncVerification compares a fresh scan with the index, applies the
// differences and publishes one event per corrected path. Each discrepancy is
// re-checked on disk first so a change the watcher applied during the scan is
// not undone.
func performSyncVerification(ctx context.Context, p *project.Project, logger *slog.Logger) (SyncResult, error) {
	start := time.Now()
	var result SyncResult

	scan, err := p.Scan(ctx)
	if err != nil {
		return result, err
	}

	diskFiles := make(map[string]index.Entry, len(scan.Entries))
	for _, entry := range scan.Entries {
		diskFiles[entry.RelativePath] = entry
	}

	var upserts []index.Entry
	for _, entry := range scan.Entries {
		indexed, ok := p.Lookup(entry.RelativePath)
		if ok && indexed.SameStat(entry) {
			continue
		}
		if current, ok := statIndexed(p.RootDir(), entry.RelativePath); !ok || !current.SameStat(entry) {
			continue
		}
		upserts = append(upserts, entry)
	}

	var stale []index.Entry
	for _, entry := range p.ListFiles() {
		if _, onDisk := diskFiles[entry.RelativePath]; onDisk || isOnDisk(p, entry.RelativePath) {
			continue
		}
		stale = append(stale, entry)
	}

	var events []notify.Event
	p.Index().Update(func(tx *index.Tx) {
		for _, entry := range upserts {
			if tx.Put(entry) {
				result.MissingFiles++
				events = append(events, notify.Event{Kind: notify.Created, Path: entry.RelativePath})
			} else {
				result.ModifiedFiles++
				events = append(events, notify.Event{Kind: notify.Modified, Path: entry.RelativePath})
			}
		}

		for _, entry := range stale {
			// Entries the watcher touched since the snapshot are left alone.
			if current, ok := tx.Get(entry.RelativePath); !ok || !current.SameStat(entry) {
				continue
			}
			tx.Delete(entry.RelativePath)
			result.StaleFiles++
			events = append(events, notify.Event{Kind: notify.Deleted, Path: entry.RelativePath})
		}
	})

	if len(events) > 0 {
		p.Hub().Publish(events...)
		for _, event := range events {
			logger.Debug("sync corrected index", "event", event.Kind, "path", event.Path)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// statIndexed stats relPath the way the scanner does.
func statIndexed(rootDir, relPath string) (index.Entry, bool) {
	info, err := os.Stat(filepath.Join(rootDir, filepath.FromSlash(relPath)))
	if err != nil || !info.Mode().IsRegular() {
		return index.Entry{}, false
	}
	return index.Entry{RelativePath: relPath, SizeBytes: info.Size(), ModTime: info.ModTime()}, true
}

// isOnDisk reports whether relPath still exists as an eligible file.
func isOnDisk(p *project.Project, relPath string) bool {
	entry, ok := statIndexed(p.RootDir(), relPath)
	if !ok {
		return false
	}
	return p.Matcher().IsValidFile(relPath) && !p.Matcher().IsFileTooLarge(entry.SizeBytes)
}
