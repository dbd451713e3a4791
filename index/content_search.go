package index

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/bmatcuk/doublestar/v4"
)

// ContentSearchResult holds the matches found within one file.
type ContentSearchResult struct {
	RelativePath string      `json:"path"`
	Matches      []LineMatch `json:"matches"`
}

// LineMatch represents a single line match within a file.
type LineMatch struct {
	LineNumber    int      `json:"line"`
	LineText      string   `json:"text"`
	ContextBefore []string `json:"before,omitempty"`
	ContextAfter  []string `json:"after,omitempty"`
}

// SearchOptions configures a content search.
type SearchOptions struct {
	Query        string
	FilePath     string // exact relative path; overrides FileGlob
	FileGlob     string
	MaxResults   int
	ContextLines int
}

// Search performs a full-text search across all indexed files.
// Query format:
//   - Plain text: match query (word-level matching)
//   - "quoted text": phrase query (exact phrase match)
//   - /regex/: regexp query
func (ci *ContentIndex) Search(options SearchOptions) ([]ContentSearchResult, int, error) {
	if options.MaxResults <= 0 {
		options.MaxResults = 50
	}
	if options.ContextLines < 0 {
		options.ContextLines = 0
	}

	lineMatcher, err := newLineMatcher(options.Query)
	if err != nil {
		return nil, 0, err
	}

	normalizedFilePath := strings.ReplaceAll(options.FilePath, "\\", "/")
	normalizedGlob := strings.ReplaceAll(options.FileGlob, "\\", "/")
	if normalizedGlob != "" && !doublestar.ValidatePattern(normalizedGlob) {
		return nil, 0, fmt.Errorf("invalid glob pattern: %s", options.FileGlob)
	}

	searchRequest := bleve.NewSearchRequest(buildQuery(options.Query))
	searchRequest.Size = options.MaxResults * 5 // over-fetch; hits are filtered and grouped by file
	searchRequest.Fields = []string{"path"}

	ci.mu.RLock()
	defer ci.mu.RUnlock()

	searchResults, err := ci.index.Search(searchRequest)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}

	var results []ContentSearchResult
	totalMatches := 0

	for _, hit := range searchResults.Hits {
		relativePath := hit.ID
		doc, ok := ci.docs[relativePath]
		if !ok {
			continue
		}

		if normalizedFilePath != "" {
			if relativePath != normalizedFilePath {
				continue
			}
		} else if normalizedGlob != "" {
			matched, matchErr := doublestar.Match(normalizedGlob, relativePath)
			if matchErr != nil || !matched {
				continue
			}
		}

		lineMatches := findMatchingLines(doc.content, lineMatcher, options.ContextLines)
		if len(lineMatches) == 0 {
			continue
		}

		totalMatches += len(lineMatches)
		results = append(results, ContentSearchResult{RelativePath: relativePath, Matches: lineMatches})

		if len(results) >= options.MaxResults {
			break
		}
	}

	return results, totalMatches, nil
}

// buildQuery parses the query string into a Bleve query.
func buildQuery(queryString string) query.Query {
	queryString = strings.TrimSpace(queryString)

	if pattern, ok := unwrap(queryString, "/"); ok {
		return bleve.NewRegexpQuery(pattern)
	}
	if phrase, ok := unwrap(queryString, "\""); ok {
		return bleve.NewMatchPhraseQuery(phrase)
	}
	return bleve.NewMatchQuery(queryString)
}

// newLineMatcher returns the predicate used to pick matching lines out of a
// hit. Regex queries match with the regex itself; other queries match the
// unquoted term case-insensitively.
func newLineMatcher(queryString string) (func(string) bool, error) {
	queryString = strings.TrimSpace(queryString)
	if queryString == "" {
		return nil, fmt.Errorf("empty query")
	}

	if pattern, ok := unwrap(queryString, "/"); ok {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		return re.MatchString, nil
	}

	term := queryString
	if phrase, ok := unwrap(queryString, "\""); ok {
		term = phrase
	}
	termLower := strings.ToLower(term)
	return func(line string) bool {
		return strings.Contains(strings.ToLower(line), termLower)
	}, nil
}

// findMatchingLines returns the lines of content accepted by match, with
// contextLines lines of context on each side.
func findMatchingLines(content string, match func(string) bool, contextLines int) []LineMatch {
	lines := strings.Split(content, "\n")

	var matches []LineMatch
	for lineIdx, line := range lines {
		if !match(line) {
			continue
		}

		lineMatch := LineMatch{
			LineNumber: lineIdx + 1, // 1-based
			LineText:   line,
		}
		if contextLines > 0 {
			start := max(0, lineIdx-contextLines)
			end := min(len(lines), lineIdx+contextLines+1)
			lineMatch.ContextBefore = append([]string(nil), lines[start:lineIdx]...)
			lineMatch.ContextAfter = append([]string(nil), lines[lineIdx+1:end]...)
		}
		matches = append(matches, lineMatch)
	}
	return matches
}

// unwrap strips a delimiter pair such as /.../ or "..." from s.
func unwrap(s, delim string) (string, bool) {
	if len(s) > 2*len(delim) && strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim) {
		return s[len(delim) : len(s)-len(delim)], true
	}
	return "", false
}
