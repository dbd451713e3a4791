package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Gate is the eligibility check the scanner consults. *ignore.Matcher implements it.
type Gate interface {
	ShouldIgnoreDir(relativePath string) bool
	IsValidFile(relativePath string) bool
	IsFileTooLarge(fileSize int64) bool
}

// Scanner walks a project tree once and produces a fresh set of entries.
type Scanner struct {
	RootDir string
	Gate    Gate
	Logger  *slog.Logger
}

// ScanResult holds the outcome of a full scan.
type ScanResult struct {
	Entries   []Entry       // eligible files in traversal order
	TotalSize int64         // sum of SizeBytes over Entries
	Skipped   int           // files that could not be stat'ed or are not regular files
	Oversized int           // eligible files rejected for exceeding the size limit
	Duration  time.Duration // wall time spent walking
}

// Scan walks RootDir depth-first in lexical order. Directories rejected by the
// gate are never entered, so nothing beneath them is visited. Per-file errors
// are logged and skipped. A cancelled context aborts the walk with ctx.Err().
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	var result ScanResult

	err := filepath.WalkDir(s.RootDir, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == s.RootDir {
				return err
			}
			s.Logger.Debug("scan: skipped unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() && path != s.RootDir {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, relErr := filepath.Rel(s.RootDir, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path != s.RootDir && s.Gate.ShouldIgnoreDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.Gate.IsValidFile(relPath) {
			return nil
		}

		// Stat follows symlinks so linked files are indexed with their target's size.
		info, statErr := os.Stat(path)
		if statErr != nil {
			s.Logger.Debug("scan: skipped file", "path", relPath, "error", statErr)
			result.Skipped++
			return nil
		}
		if !info.Mode().IsRegular() {
			result.Skipped++
			return nil
		}
		if s.Gate.IsFileTooLarge(info.Size()) {
			s.Logger.Debug("scan: skipped oversized file", "path", relPath, "size", info.Size())
			result.Oversized++
			return nil
		}

		result.Entries = append(result.Entries, Entry{
			RelativePath: relPath,
			SizeBytes:    info.Size(),
			ModTime:      info.ModTime(),
		})
		result.TotalSize += info.Size()
		return nil
	})

	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}
	return result, nil
}

// ScanInto runs a full scan and, only if it completes, swaps the result into fileIndex.
func (s *Scanner) ScanInto(ctx context.Context, fileIndex *FileIndex) (ScanResult, error) {
	result, err := s.Scan(ctx)
	if err != nil {
		return result, err
	}
	fileIndex.Replace(result.Entries)
	return result, nil
}
