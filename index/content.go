package index

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// ContentIndex provides full-text search over file contents using a Bleve in-memory index.
// It is a secondary index: it is fed from change events and may lag the FileIndex.
type ContentIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	docs  map[string]contentDoc // key: relative path
}

// contentDoc keeps the raw content for line-level result extraction plus the
// stat values it was indexed with.
type contentDoc struct {
	content string
	size    int64
	modTime time.Time
}

// bleveDocument is the document structure stored in Bleve.
type bleveDocument struct {
	Content   string `json:"content"`
	Path      string `json:"path"`
	Extension string `json:"extension"`
}

// NewContentIndex creates a new in-memory Bleve content index.
func NewContentIndex() (*ContentIndex, error) {
	bleveIndex, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating bleve index: %w", err)
	}

	return &ContentIndex{
		index: bleveIndex,
		docs:  make(map[string]contentDoc),
	}, nil
}

// buildIndexMapping creates the Bleve index mapping for file content.
func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	contentFieldMapping := bleve.NewTextFieldMapping()
	contentFieldMapping.Store = false // raw content lives in docs
	contentFieldMapping.IncludeInAll = true
	docMapping.AddFieldMappingsAt("content", contentFieldMapping)

	pathFieldMapping := bleve.NewTextFieldMapping()
	pathFieldMapping.Store = true
	pathFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("path", pathFieldMapping)

	extFieldMapping := bleve.NewKeywordFieldMapping()
	extFieldMapping.Store = true
	extFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("extension", extFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexFile adds or updates a file's content in the search index.
func (ci *ContentIndex) IndexFile(entry Entry, content string) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	doc := bleveDocument{
		Content:   content,
		Path:      entry.RelativePath,
		Extension: strings.ToLower(path.Ext(entry.RelativePath)),
	}
	if err := ci.index.Index(entry.RelativePath, doc); err != nil {
		return fmt.Errorf("indexing file %s: %w", entry.RelativePath, err)
	}

	ci.docs[entry.RelativePath] = contentDoc{
		content: content,
		size:    entry.SizeBytes,
		modTime: entry.ModTime,
	}
	return nil
}

// IsCurrent reports whether entry is already indexed with the same size and modification time.
func (ci *ContentIndex) IsCurrent(entry Entry) bool {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	doc, ok := ci.docs[entry.RelativePath]
	return ok && doc.size == entry.SizeBytes && doc.modTime.Equal(entry.ModTime)
}

// RemoveFile removes a file from the search index. Removing an unknown path is a no-op.
func (ci *ContentIndex) RemoveFile(relativePath string) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	if _, ok := ci.docs[relativePath]; !ok {
		return nil
	}
	delete(ci.docs, relativePath)
	if err := ci.index.Delete(relativePath); err != nil {
		return fmt.Errorf("removing file %s from index: %w", relativePath, err)
	}
	return nil
}

// Paths returns the relative paths currently held by the content index.
func (ci *ContentIndex) Paths() []string {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	paths := make([]string, 0, len(ci.docs))
	for p := range ci.docs {
		paths = append(paths, p)
	}
	return paths
}

// DocumentCount returns the number of documents in the Bleve index.
func (ci *ContentIndex) DocumentCount() uint64 {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	count, _ := ci.index.DocCount()
	return count
}

// Clear removes all documents and recreates the index.
func (ci *ContentIndex) Clear() error {
	newIndex, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating new index: %w", err)
	}

	ci.mu.Lock()
	defer ci.mu.Unlock()

	if err := ci.index.Close(); err != nil {
		return fmt.Errorf("closing old index: %w", err)
	}
	ci.index = newIndex
	ci.docs = make(map[string]contentDoc)
	return nil
}

// Close closes the Bleve index.
func (ci *ContentIndex) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.index.Close()
}
