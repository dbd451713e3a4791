package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/lexandro/codesync/index"
	"github.com/lexandro/codesync/notify"
)

// readRetryDelay is how long ReadFile waits before retrying a failed read,
// which covers editors that briefly lock files while saving.
const readRetryDelay = 50 * time.Millisecond

// ReadFile returns the content of relPath and its current stat. Content is
// served from the cache while size and modification time are unchanged.
func (p *Project) ReadFile(relPath string) ([]byte, index.Entry, error) {
	absPath, cleanPath, err := p.Resolve(relPath)
	if err != nil {
		return nil, index.Entry{}, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, index.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, cleanPath)
		}
		return nil, index.Entry{}, fmt.Errorf("stat %s: %w", cleanPath, err)
	}
	if info.IsDir() {
		return nil, index.Entry{}, fmt.Errorf("%w: %s is a directory", ErrInvalidPath, cleanPath)
	}
	if p.matcher.IsFileTooLarge(info.Size()) {
		return nil, index.Entry{}, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, cleanPath, info.Size(), p.matcher.MaxFileSizeBytes())
	}

	entry := index.Entry{RelativePath: cleanPath, SizeBytes: info.Size(), ModTime: info.ModTime()}
	if cached, ok := p.cache.Get(cleanPath); ok && cached.size == entry.SizeBytes && cached.modTime.Equal(entry.ModTime) {
		return cached.content, entry, nil
	}

	content, err := readFileWithRetry(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, index.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, cleanPath)
		}
		return nil, index.Entry{}, fmt.Errorf("reading %s: %w", cleanPath, err)
	}
	p.cache.Add(cleanPath, cachedFile{size: entry.SizeBytes, modTime: entry.ModTime, content: content})
	return content, entry, nil
}

// WriteFile writes content to relPath, creating parent directories, and
// records the result in the index. The watcher sees the same change later and
// stays quiet because the indexed stat already matches.
func (p *Project) WriteFile(relPath string, content []byte) (index.Entry, error) {
	absPath, cleanPath, err := p.Resolve(relPath)
	if err != nil {
		return index.Entry{}, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return index.Entry{}, fmt.Errorf("creating parent of %s: %w", cleanPath, err)
	}
	if err := os.WriteFile(absPath, content, 0644); err != nil {
		return index.Entry{}, fmt.Errorf("writing %s: %w", cleanPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		// The file vanished right after the write; the watcher reconciles it.
		p.logger.Debug("stat after write failed", "path", cleanPath, "error", err)
		return index.Entry{RelativePath: cleanPath, SizeBytes: int64(len(content))}, nil
	}
	p.RecordWrite(cleanPath, info.Size(), info.ModTime())
	return index.Entry{RelativePath: cleanPath, SizeBytes: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes relPath from disk, recursively for directories, drops the
// affected entries from the index and returns the published events.
func (p *Project) Delete(relPath string) ([]notify.Event, error) {
	absPath, cleanPath, err := p.Resolve(relPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Lstat(absPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, cleanPath)
		}
		return nil, fmt.Errorf("stat %s: %w", cleanPath, err)
	}
	if err := os.RemoveAll(absPath); err != nil {
		return nil, fmt.Errorf("removing %s: %w", cleanPath, err)
	}
	return p.RecordDelete(cleanPath), nil
}

// Move renames source to destination, creating the destination's parent
// directories, and moves the affected index entries.
func (p *Project) Move(source, destination string) error {
	absSource, cleanSource, err := p.Resolve(source)
	if err != nil {
		return err
	}
	absDest, cleanDest, err := p.Resolve(destination)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(absSource); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, cleanSource)
		}
		return fmt.Errorf("stat %s: %w", cleanSource, err)
	}
	if err := os.MkdirAll(filepath.Dir(absDest), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", cleanDest, err)
	}
	if err := os.Rename(absSource, absDest); err != nil {
		return fmt.Errorf("moving %s to %s: %w", cleanSource, cleanDest, err)
	}
	p.RecordRename(cleanSource, cleanDest)
	return nil
}

// readFileWithRetry attempts to read a file, retrying once after a short delay
// if the file is locked (common on Windows when editors are saving).
func readFileWithRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		time.Sleep(readRetryDelay)
		data, err = os.ReadFile(path)
	}
	return data, err
}
