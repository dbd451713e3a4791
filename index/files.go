package index

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry is the index record for one eligible file.
type Entry struct {
	RelativePath string    // Path relative to project root (forward slashes)
	SizeBytes    int64     // File size in bytes
	ModTime      time.Time // Last modification time
}

// SameStat reports whether e and other describe the same size and
// modification time.
func (e Entry) SameStat(other Entry) bool {
	return e.SizeBytes == other.SizeBytes && e.ModTime.Equal(other.ModTime)
}

// FileIndex is the in-memory mapping from relative path to Entry.
// Iteration follows insertion order; overwriting an existing key keeps its
// position. A single lock guards every read and write.
type FileIndex struct {
	mu    sync.RWMutex
	files map[string]*list.Element // key: relative path (forward slashes), value: Entry
	order *list.List
}

// NewFileIndex creates a new empty file index.
func NewFileIndex() *FileIndex {
	return &FileIndex{
		files: make(map[string]*list.Element),
		order: list.New(),
	}
}

// AddFile adds or updates a file in the index. It reports whether the path was new.
func (fi *FileIndex) AddFile(entry Entry) bool {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.put(entry)
}

// RemoveFile removes a file from the index by its relative path and returns
// the removed entry.
func (fi *FileIndex) RemoveFile(relativePath string) (Entry, bool) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.remove(relativePath)
}

// RemovePrefix removes every entry located under directory dir and returns
// them in index order.
func (fi *FileIndex) RemovePrefix(dir string) []Entry {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.removePrefix(dir)
}

// GetFile returns the entry for a given relative path.
func (fi *FileIndex) GetFile(relativePath string) (Entry, bool) {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return fi.get(relativePath)
}

// FileCount returns the number of indexed files.
func (fi *FileIndex) FileCount() int {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return len(fi.files)
}

// TotalSizeBytes returns the total size of all indexed files.
func (fi *FileIndex) TotalSizeBytes() int64 {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	var totalSize int64
	for el := fi.order.Front(); el != nil; el = el.Next() {
		totalSize += el.Value.(Entry).SizeBytes
	}
	return totalSize
}

// AllFiles returns a snapshot of all entries in insertion order.
func (fi *FileIndex) AllFiles() []Entry {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	result := make([]Entry, 0, fi.order.Len())
	for el := fi.order.Front(); el != nil; el = el.Next() {
		result = append(result, el.Value.(Entry))
	}
	return result
}

// SearchByGlob returns entries whose relative path matches a doublestar glob
// pattern, in index order. maxResults <= 0 means no limit.
func (fi *FileIndex) SearchByGlob(pattern string, maxResults int) ([]Entry, error) {
	// Normalize pattern to forward slashes
	pattern = strings.ReplaceAll(pattern, "\\", "/")

	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	fi.mu.RLock()
	defer fi.mu.RUnlock()

	var results []Entry
	for el := fi.order.Front(); el != nil; el = el.Next() {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		entry := el.Value.(Entry)
		matched, err := doublestar.Match(pattern, entry.RelativePath)
		if err != nil {
			continue
		}
		if matched {
			results = append(results, entry)
		}
	}
	return results, nil
}

// Replace swaps the whole index for entries. The new mapping is built before
// the lock is taken, so readers see either the old or the new index.
// Later duplicates of a path overwrite earlier ones in place.
func (fi *FileIndex) Replace(entries []Entry) {
	files := make(map[string]*list.Element, len(entries))
	order := list.New()
	for _, entry := range entries {
		if el, ok := files[entry.RelativePath]; ok {
			el.Value = entry
			continue
		}
		files[entry.RelativePath] = order.PushBack(entry)
	}

	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.files = files
	fi.order = order
}

// Clear removes all files from the index.
func (fi *FileIndex) Clear() {
	fi.Replace(nil)
}

// Tx is the view of the index handed to Update callbacks. It must not be
// used after the callback returns.
type Tx struct {
	fi *FileIndex
}

// Get returns the entry for relativePath.
func (tx *Tx) Get(relativePath string) (Entry, bool) { return tx.fi.get(relativePath) }

// Put inserts or overwrites an entry and reports whether the path was new.
func (tx *Tx) Put(entry Entry) bool { return tx.fi.put(entry) }

// Delete removes relativePath.
func (tx *Tx) Delete(relativePath string) (Entry, bool) { return tx.fi.remove(relativePath) }

// DeletePrefix removes every entry under dir.
func (tx *Tx) DeletePrefix(dir string) []Entry { return tx.fi.removePrefix(dir) }

// Update runs fn with exclusive access to the index, so a lookup, a stat and
// the resulting mutation happen as one step. fn must not block on network I/O.
func (fi *FileIndex) Update(fn func(tx *Tx)) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fn(&Tx{fi: fi})
}

func (fi *FileIndex) get(relativePath string) (Entry, bool) {
	el, ok := fi.files[relativePath]
	if !ok {
		return Entry{}, false
	}
	return el.Value.(Entry), true
}

func (fi *FileIndex) put(entry Entry) bool {
	if el, ok := fi.files[entry.RelativePath]; ok {
		el.Value = entry
		return false
	}
	fi.files[entry.RelativePath] = fi.order.PushBack(entry)
	return true
}

func (fi *FileIndex) remove(relativePath string) (Entry, bool) {
	el, ok := fi.files[relativePath]
	if !ok {
		return Entry{}, false
	}
	delete(fi.files, relativePath)
	return fi.order.Remove(el).(Entry), true
}

func (fi *FileIndex) removePrefix(dir string) []Entry {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return nil
	}
	prefix := dir + "/"

	var removed []Entry
	for el := fi.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(Entry)
		if strings.HasPrefix(entry.RelativePath, prefix) {
			delete(fi.files, entry.RelativePath)
			fi.order.Remove(el)
			removed = append(removed, entry)
		}
		el = next
	}
	return removed
}
