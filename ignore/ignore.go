package ignore

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"

	"github.com/lexandro/codesync/language"
)

// Matcher decides whether a root-relative path is eligible for the index.
// It combines explicit excluded paths, ignored directory names, glob patterns
// and, optionally, the root .gitignore.
// Every exported check is a pure function of its argument and the loaded
// rules; Reload() swaps the .gitignore rules under a write lock.
type Matcher struct {
	mu               sync.RWMutex
	rootDir          string
	excludedPaths    map[string]struct{}
	ignoreDirs       map[string]struct{} // lower-cased single-segment names
	ignorePrefixes   map[string]struct{} // lower-cased multi-segment entries like "android/app/build"
	patterns         []string
	useGitignore     bool
	gitIgnore        gitignore.GitIgnore
	maxFileSizeBytes int64
}

// MatcherOptions configures the ignore matcher.
type MatcherOptions struct {
	RootDir          string
	Config           Config
	MaxFileSizeBytes int64
	// UseGitignore additionally honors the .gitignore at RootDir.
	UseGitignore bool
}

// NewMatcher creates an ignore matcher from the given rule set.
func NewMatcher(options MatcherOptions) *Matcher {
	cfg := options.Config.Normalize()
	matcher := &Matcher{
		rootDir:          options.RootDir,
		excludedPaths:    make(map[string]struct{}, len(cfg.ExcludedPaths)),
		ignoreDirs:       make(map[string]struct{}, len(cfg.IgnoreDirs)),
		ignorePrefixes:   make(map[string]struct{}),
		patterns:         cfg.Patterns,
		useGitignore:     options.UseGitignore,
		maxFileSizeBytes: options.MaxFileSizeBytes,
	}

	if matcher.maxFileSizeBytes <= 0 {
		matcher.maxFileSizeBytes = DefaultMaxFileSizeBytes
	}

	for _, p := range cfg.ExcludedPaths {
		matcher.excludedPaths[p] = struct{}{}
	}
	for _, dir := range cfg.IgnoreDirs {
		dir = strings.ToLower(NormalizePath(dir))
		if strings.Contains(dir, "/") {
			matcher.ignorePrefixes[dir] = struct{}{}
			continue
		}
		matcher.ignoreDirs[dir] = struct{}{}
	}

	if options.UseGitignore && options.RootDir != "" {
		matcher.gitIgnore = loadIgnoreFile(filepath.Join(options.RootDir, ".gitignore"), options.RootDir)
	}

	return matcher
}

// IsExcluded reports whether a root-relative path is excluded by any rule.
// Rules are a union: a path matched by several rules is excluded no matter
// which one is evaluated first.
func (m *Matcher) IsExcluded(relativePath string) bool {
	relativePath = NormalizePath(relativePath)
	if relativePath == "" {
		return false
	}

	if m.matchesPatterns(relativePath) {
		return true
	}
	if m.matchesPathRules(relativePath) {
		return true
	}
	return m.matchesGitignore(relativePath)
}

// IsValidFile is the file-specific gate: it rejects backup files, denylisted
// binary extensions, dotfiles, files under hidden directories and anything
// IsExcluded rejects. It never admits a path the scanner would prune.
func (m *Matcher) IsValidFile(relativePath string) bool {
	relativePath = NormalizePath(relativePath)
	if relativePath == "" {
		return false
	}

	baseName := path.Base(relativePath)
	if strings.HasSuffix(baseName, "~") {
		return false
	}
	if strings.HasPrefix(baseName, ".") {
		return false
	}
	if language.IsBinaryExtension(baseName) {
		return false
	}
	if dir := path.Dir(relativePath); dir != "." {
		for _, component := range strings.Split(dir, "/") {
			if strings.HasPrefix(component, ".") {
				return false
			}
		}
	}
	return !m.IsExcluded(relativePath)
}

// ShouldIgnoreDir returns true if a directory should be skipped entirely during traversal.
// Hidden directories are always pruned.
func (m *Matcher) ShouldIgnoreDir(relativePath string) bool {
	relativePath = NormalizePath(relativePath)
	if relativePath == "" {
		return false
	}
	if strings.HasPrefix(path.Base(relativePath), ".") {
		return true
	}
	return m.IsExcluded(relativePath)
}

// IsFileTooLarge returns true if the file exceeds the max file size limit.
func (m *Matcher) IsFileTooLarge(fileSize int64) bool {
	return fileSize > m.maxFileSizeBytes
}

// MaxFileSizeBytes returns the configured maximum file size.
func (m *Matcher) MaxFileSizeBytes() int64 {
	return m.maxFileSizeBytes
}

// RootDir returns the project root the matcher was built for.
func (m *Matcher) RootDir() string {
	return m.rootDir
}

// matchesPatterns checks every glob pattern against the relative path (as a
// substring and as a glob), against its base name, and against every
// directory prefix and component so that a matched directory absorbs its
// descendants.
func (m *Matcher) matchesPatterns(relativePath string) bool {
	if len(m.patterns) == 0 {
		return false
	}

	baseName := path.Base(relativePath)
	parts := strings.Split(relativePath, "/")

	for _, pattern := range m.patterns {
		if strings.Contains(relativePath, pattern) {
			return true
		}
		if globMatch(pattern, relativePath) || globMatch(pattern, baseName) {
			return true
		}

		accum := ""
		for _, part := range parts[:len(parts)-1] {
			accum = joinAccum(accum, part)
			if globMatch(pattern, accum) || globMatch(pattern, part) {
				return true
			}
		}
	}
	return false
}

// matchesPathRules walks the path component by component. Any accumulated
// prefix listed as an explicit excluded path, or any component named like an
// ignored directory, excludes the whole path.
func (m *Matcher) matchesPathRules(relativePath string) bool {
	accum := ""
	for _, part := range strings.Split(relativePath, "/") {
		accum = joinAccum(accum, part)
		if _, ok := m.excludedPaths[accum]; ok {
			return true
		}
		if _, ok := m.ignoreDirs[strings.ToLower(part)]; ok {
			return true
		}
		if _, ok := m.ignorePrefixes[strings.ToLower(accum)]; ok {
			return true
		}
	}
	return false
}

// matchesGitignore checks the root .gitignore; every parent directory is
// tested as a directory so directory-only rules absorb their contents.
func (m *Matcher) matchesGitignore(relativePath string) bool {
	if !m.useGitignore {
		return false
	}

	m.mu.RLock()
	gi := m.gitIgnore
	m.mu.RUnlock()
	if gi == nil {
		return false
	}

	parts := strings.Split(relativePath, "/")
	accum := ""
	for i, part := range parts {
		accum = joinAccum(accum, part)
		isDir := i < len(parts)-1
		if match := gi.Relative(accum, isDir); match != nil && match.Ignore() {
			return true
		}
	}
	return false
}

// Reload re-reads the root .gitignore from disk.
// Used when the watcher detects changes to it.
func (m *Matcher) Reload() {
	if !m.useGitignore || m.rootDir == "" {
		return
	}
	newGitIgnore := loadIgnoreFile(filepath.Join(m.rootDir, ".gitignore"), m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gitIgnore = newGitIgnore
}

// IsRuleFile reports whether a change to relativePath requires Reload.
func (m *Matcher) IsRuleFile(relativePath string) bool {
	return m.useGitignore && NormalizePath(relativePath) == ".gitignore"
}

func globMatch(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	return err == nil && matched
}

func joinAccum(accum, part string) string {
	if accum == "" {
		return part
	}
	return accum + "/" + part
}

// loadIgnoreFile reads an ignore file and creates a GitIgnore matcher from it.
// Uses io.Reader approach to ensure the file handle is properly closed on Windows.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
