package ignore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Config is the exclusion input of the matcher. It is read-only while the
// server runs; only the offline selector writes it.
type Config struct {
	// ExcludedPaths are root-relative paths (files or directory prefixes).
	ExcludedPaths []string `json:"excluded_paths"`
	// IgnoreDirs are directory names matched case-insensitively against every path component.
	IgnoreDirs []string `json:"ignore_dirs"`
	// Patterns are shell globs matched against the relative path and its base name.
	Patterns []string `json:"custom_patterns"`
}

type configFile struct {
	Config
	Timestamp float64 `json:"timestamp"`
}

// WithDefaultPatterns returns a copy of c that contains every DefaultPatterns entry.
func (c Config) WithDefaultPatterns() Config {
	out := c.Normalize()
	out.Patterns = normalizeSet(append(out.Patterns, DefaultPatterns...))
	return out
}

// WithPatterns returns a copy of c with extra glob patterns added.
func (c Config) WithPatterns(patterns ...string) Config {
	out := c.Normalize()
	out.Patterns = normalizeSet(append(out.Patterns, patterns...))
	return out
}

// Normalize returns a copy of c with slash-normalized, de-duplicated, sorted sets.
func (c Config) Normalize() Config {
	excluded := make([]string, 0, len(c.ExcludedPaths))
	for _, p := range c.ExcludedPaths {
		if p = NormalizePath(p); p != "" {
			excluded = append(excluded, p)
		}
	}
	return Config{
		ExcludedPaths: normalizeSet(excluded),
		IgnoreDirs:    normalizeSet(c.IgnoreDirs),
		Patterns:      normalizeSet(c.Patterns),
	}
}

// IsPathExcluded reports whether rel is listed verbatim in ExcludedPaths.
func (c Config) IsPathExcluded(rel string) bool {
	return slices.Contains(c.ExcludedPaths, NormalizePath(rel))
}

// ToggleExcludedPath adds rel to ExcludedPaths, or removes it if already present.
func (c Config) ToggleExcludedPath(rel string) Config {
	rel = NormalizePath(rel)
	out := c.Normalize()
	if i := slices.Index(out.ExcludedPaths, rel); i >= 0 {
		out.ExcludedPaths = slices.Delete(out.ExcludedPaths, i, i+1)
		return out
	}
	out.ExcludedPaths = normalizeSet(append(out.ExcludedPaths, rel))
	return out
}

// LoadConfig reads a persisted selection. The file may contain comments and
// trailing commas. found is false when the file does not exist.
func LoadConfig(path string) (cfg Config, found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("reading ignore config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, true, fmt.Errorf("parsing ignore config %s: %w", path, err)
	}

	var file configFile
	decoder := json.NewDecoder(bytes.NewReader(standardized))
	if err := decoder.Decode(&file); err != nil {
		return Config{}, true, fmt.Errorf("decoding ignore config %s: %w", path, err)
	}

	return file.Config.Normalize(), true, nil
}

// SaveConfig atomically writes cfg to path.
func SaveConfig(path string, cfg Config) error {
	file := configFile{
		Config:    cfg.Normalize(),
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ignore config: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing ignore config %s: %w", path, err)
	}
	return nil
}

// NormalizePath converts p to the index key form: forward slashes, no
// leading "./" or "/", no trailing slash. The root itself becomes "".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.Trim(p, "/")
	if p == "." {
		return ""
	}
	return p
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
