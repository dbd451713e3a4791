// Package selector is the interactive exclusion picker run before serving.
// Model is a pure cursor state machine over a directory tree; the terminal
// driver feeds it keys and renders its View.
package selector

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lexandro/codesync/ignore"
)

// MaxRows is the number of items shown at once.
const MaxRows = 15

// Key is a decoded keypress.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyOpen
	KeyBack
	KeyToggle
	KeyInvert
	KeyFinish
	KeyQuit
)

// State is the lifecycle of a selection session.
type State int

const (
	Browsing State = iota
	Finished
	Cancelled
)

// Item is one directory entry shown by the selector.
type Item struct {
	Name  string
	IsDir bool
}

// Lister returns the items of a root-relative directory ("" is the root).
type Lister func(relDir string) ([]Item, error)

// Model holds the selection session.
type Model struct {
	config ignore.Config
	list   Lister
	dir    string
	items  []Item
	cursor int
	state  State
	err    error
}

// NewModel starts a session at the root directory.
func NewModel(cfg ignore.Config, list Lister) *Model {
	m := &Model{config: cfg.Normalize(), list: list}
	m.load()
	return m
}

// Config returns the current selection.
func (m *Model) Config() ignore.Config { return m.config }

// State reports whether the session is still running.
func (m *Model) State() State { return m.state }

// Dir returns the root-relative directory being browsed.
func (m *Model) Dir() string { return m.dir }

// Cursor returns the index of the highlighted item.
func (m *Model) Cursor() int { return m.cursor }

// Handle applies one keypress.
func (m *Model) Handle(key Key) {
	if m.state != Browsing {
		return
	}

	switch key {
	case KeyUp:
		m.cursor = max(0, m.cursor-1)
	case KeyDown:
		m.cursor = max(0, min(len(m.items)-1, m.cursor+1))
	case KeyToggle:
		if len(m.items) > 0 {
			m.config = m.config.ToggleExcludedPath(m.relPath(m.items[m.cursor]))
		}
	case KeyInvert:
		for _, item := range m.items {
			m.config = m.config.ToggleExcludedPath(m.relPath(item))
		}
	case KeyOpen:
		if len(m.items) > 0 && m.items[m.cursor].IsDir {
			m.dir = m.relPath(m.items[m.cursor])
			m.load()
		}
	case KeyBack:
		if m.dir != "" {
			m.dir = parentDir(m.dir)
			m.load()
		}
	case KeyFinish:
		m.state = Finished
	case KeyQuit:
		m.state = Cancelled
	}
}

// IsExcluded reports whether item in the current directory is excluded,
// either explicitly or by an ignored directory name.
func (m *Model) IsExcluded(item Item) bool {
	if m.config.IsPathExcluded(m.relPath(item)) {
		return true
	}
	lower := strings.ToLower(item.Name)
	return slices.ContainsFunc(m.config.IgnoreDirs, func(dir string) bool {
		return strings.ToLower(dir) == lower
	})
}

// Row is one rendered line of the listing.
type Row struct {
	Item
	Excluded bool
	Selected bool
}

// View is a render-ready snapshot of the model.
type View struct {
	Dir             string
	Rows            []Row
	Included        int
	Excluded        int
	Hidden          int // items below the visible window
	TotalExclusions int
	Err             error
}

// View returns the visible window around the cursor.
func (m *Model) View() View {
	v := View{Dir: m.dir, TotalExclusions: len(m.config.ExcludedPaths), Err: m.err}
	if v.Dir == "" {
		v.Dir = "."
	}

	for _, item := range m.items {
		if m.IsExcluded(item) {
			v.Excluded++
		}
	}
	v.Included = len(m.items) - v.Excluded

	start, end := window(m.cursor, len(m.items))
	for i := start; i < end; i++ {
		v.Rows = append(v.Rows, Row{
			Item:     m.items[i],
			Excluded: m.IsExcluded(m.items[i]),
			Selected: i == m.cursor,
		})
	}
	v.Hidden = len(m.items) - end
	return v
}

// window centers the cursor in a MaxRows-tall slice of n items.
func window(cursor, n int) (int, int) {
	start := max(0, cursor-MaxRows/2)
	end := min(n, start+MaxRows)
	if end-start < MaxRows {
		start = max(0, end-MaxRows)
	}
	return start, end
}

func (m *Model) load() {
	m.cursor = 0
	m.items, m.err = m.list(m.dir)
}

func (m *Model) relPath(item Item) string {
	if m.dir == "" {
		return item.Name
	}
	return m.dir + "/" + item.Name
}

func parentDir(dir string) string {
	parent := path.Dir(dir)
	if parent == "." {
		return ""
	}
	return parent
}

// DirLister lists directories under root. Dotfiles are hidden, directories
// come first and names sort case-insensitively.
func DirLister(root string) Lister {
	return func(relDir string) ([]Item, error) {
		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(relDir)))
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", relDir, err)
		}

		var dirs, files []Item
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			isDir := entry.IsDir()
			if entry.Type()&os.ModeSymlink != 0 {
				if info, err := os.Stat(filepath.Join(root, filepath.FromSlash(relDir), entry.Name())); err == nil {
					isDir = info.IsDir()
				}
			}
			if isDir {
				dirs = append(dirs, Item{Name: entry.Name(), IsDir: true})
			} else {
				files = append(files, Item{Name: entry.Name()})
			}
		}

		byName := func(a, b Item) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
		slices.SortFunc(dirs, byName)
		slices.SortFunc(files, byName)
		return append(dirs, files...), nil
	}
}
