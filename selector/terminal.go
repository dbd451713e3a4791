package selector

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/lexandro/codesync/ignore"
)

// ErrNotTerminal is returned when the selector is started without a TTY.
var ErrNotTerminal = errors.New("selector needs an interactive terminal")

const rule = "----------------------------------------------------------------------"

var (
	headerColor   = color.New(color.FgCyan, color.Bold)
	selectedColor = color.New(color.FgCyan)
	excludedColor = color.New(color.FgHiBlack)
	includedColor = color.New(color.FgGreen)
	errorColor    = color.New(color.FgRed)
)

// ParseKey decodes the bytes of a single read from a raw-mode terminal.
func ParseKey(b []byte) Key {
	if len(b) == 0 {
		return KeyNone
	}
	if b[0] == 0x1b {
		if len(b) >= 3 && b[1] == '[' {
			switch b[2] {
			case 'A':
				return KeyUp
			case 'B':
				return KeyDown
			case 'C':
				return KeyOpen
			case 'D':
				return KeyBack
			}
			return KeyNone
		}
		return KeyQuit
	}

	switch b[0] {
	case '\r', '\n':
		return KeyOpen
	case ' ':
		return KeyToggle
	case 0x7f, 0x08:
		return KeyBack
	case 0x03:
		return KeyQuit
	}

	switch strings.ToLower(string(b[:1])) {
	case "w":
		return KeyUp
	case "s":
		return KeyDown
	case "d":
		return KeyOpen
	case "a":
		return KeyBack
	case "i":
		return KeyInvert
	case "f":
		return KeyFinish
	}
	return KeyNone
}

// Run drives a selection session on the terminal in until the user finishes
// or quits. The returned config is only meaningful when the state is Finished.
func Run(root string, cfg ignore.Config, in *os.File, out io.Writer) (ignore.Config, State, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return cfg, Cancelled, ErrNotTerminal
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return cfg, Cancelled, fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	model := NewModel(cfg, DirLister(root))
	buf := make([]byte, 8)
	for model.State() == Browsing {
		fmt.Fprint(out, "\x1b[H\x1b[2J")
		Render(out, model.View())

		n, err := in.Read(buf)
		if err != nil {
			return cfg, Cancelled, fmt.Errorf("reading key: %w", err)
		}
		model.Handle(ParseKey(buf[:n]))
	}

	fmt.Fprint(out, "\x1b[H\x1b[2J")
	return model.Config(), model.State(), nil
}

// Render writes v as a raw-mode screen; lines end in CRLF.
func Render(w io.Writer, v View) {
	line := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\r\n", args...)
	}

	line("%s", headerColor.Sprint(strings.Repeat("=", len(rule))))
	line("%s", headerColor.Sprint("  codesync exclusion selector"))
	line("%s", headerColor.Sprint(strings.Repeat("=", len(rule))))
	line("")
	line("  Current: %s", color.New(color.Bold).Sprint(v.Dir))
	line("")
	line("%s", excludedColor.Sprint("  Navigation:  Up/Down W/S = Move   Left/Right A/D = Out/In   Enter = Open"))
	line("%s", excludedColor.Sprint("  Selection:   Space = Toggle   I = Invert all"))
	line("%s", excludedColor.Sprint("  Actions:     F = Finish and save   Esc = Quit"))
	line("")
	line("  Stats: %d included, %d excluded", v.Included, v.Excluded)
	line("%s", excludedColor.Sprint(rule))

	if v.Err != nil {
		line("  %s", errorColor.Sprint(v.Err))
	} else if len(v.Rows) == 0 {
		line("  (Empty Directory)")
	}

	for _, row := range v.Rows {
		cursor := " "
		if row.Selected {
			cursor = ">"
		}
		checkbox := includedColor.Sprint("[x]")
		if row.Excluded {
			checkbox = "[ ]"
		}
		name := row.Name
		if row.IsDir {
			name += "/"
		}

		text := fmt.Sprintf("  %s %s %s", cursor, checkbox, name)
		switch {
		case row.Selected:
			text = selectedColor.Sprint(text)
		case row.Excluded:
			text = excludedColor.Sprint(text)
		}
		line("%s", text)
	}
	if v.Hidden > 0 {
		line("%s", excludedColor.Sprintf("  ... %d more items ...", v.Hidden))
	}

	line("%s", excludedColor.Sprint(rule))
	line("  Total exclusions: %d", v.TotalExclusions)
}
