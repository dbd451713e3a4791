package tools

import (
	"strings"
	"testing"
	"time"

	"github.com/lexandro/codesync/index"
)

func Test_formatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{2048, "2.0 KB"},
		{1536, "1.5 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatFileSize(tt.bytes); got != tt.want {
			t.Errorf("formatFileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func Test_formatDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{45 * time.Second, "45s"},
		{3*time.Minute + 5*time.Second, "3m5s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.input); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func Test_FormatSearchResults(t *testing.T) {
	if got := FormatSearchResults(nil, 0); got != "No matches found." {
		t.Errorf("expected 'No matches found.', got %q", got)
	}

	results := []index.ContentSearchResult{
		{
			RelativePath: "main.go",
			Matches: []index.LineMatch{{
				LineNumber:    5,
				LineText:      `fmt.Println("hello")`,
				ContextBefore: []string{"func main() {"},
				ContextAfter:  []string{"}"},
			}},
		},
		{
			RelativePath: "util/log.go",
			Matches:      []index.LineMatch{{LineNumber: 12, LineText: `log("hello")`}},
		},
	}

	got := FormatSearchResults(results, 2)
	for _, want := range []string{
		"Found 2 matches in 2 files:",
		"── main.go ──",
		"  func main() {\n  5: fmt.Println(\"hello\")\n  }\n",
		"── util/log.go ──",
		`12: log("hello")`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

func Test_FormatFileResults(t *testing.T) {
	if got := FormatFileResults(nil, false); got != "No files matched." {
		t.Errorf("expected 'No files matched.', got %q", got)
	}

	entries := []index.Entry{{
		RelativePath: "src/app.go",
		SizeBytes:    2048,
		ModTime:      time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}}

	got := FormatFileResults(entries, false)
	want := "Found 1 files:\n\n  src/app.go  (2.0 KB, modified 2024-03-01 12:30:00)\n"
	if got != want {
		t.Errorf("FormatFileResults() = %q, want %q", got, want)
	}

	if got := FormatFileResults(entries, true); got != "Found 1 files:\n\nsrc/app.go\n" {
		t.Errorf("nameOnly should list bare paths, got %q", got)
	}
}

func Test_FormatFileContent(t *testing.T) {
	content := "a\nb\nc\nd\ne\nf\ng"

	tests := []struct {
		name    string
		offset  int
		limit   int
		want    []string
		notWant []string
	}{
		{"whole file", 0, 0, []string{"1: a", "7: g"}, nil},
		{"offset keeps file line numbers", 3, 0, []string{"3: c", "7: g"}, []string{"1: a", "2: b"}},
		{"limit stops early", 0, 2, []string{"1: a", "2: b"}, []string{"3: c"}},
		{"offset and limit", 3, 2, []string{"3: c", "4: d"}, []string{"2: b", "5: e"}},
		{"limit past the end", 6, 10, []string{"6: f", "7: g"}, []string{"5: e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatFileContent("f.txt", content, tt.offset, tt.limit)
			if !strings.HasPrefix(got, "── f.txt (7 lines) ──\n") {
				t.Errorf("expected header, got:\n%s", got)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("expected %q, got:\n%s", want, got)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(got, notWant) {
					t.Errorf("did not expect %q, got:\n%s", notWant, got)
				}
			}
		})
	}
}

func Test_FormatFileContent_OffsetBeyondEOF(t *testing.T) {
	got := FormatFileContent("f.txt", "line one\nline two", 100, 0)
	if got != "Offset exceeds file length: f.txt has 2 lines" {
		t.Errorf("unexpected message %q", got)
	}
}

func Test_FormatFileContent_PadsLineNumbers(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = "x"
	}
	got := FormatFileContent("f.txt", strings.Join(lines, "\n"), 0, 0)
	if !strings.Contains(got, "\n 1: x\n") || !strings.Contains(got, "\n12: x\n") {
		t.Errorf("expected right-aligned line numbers, got:\n%s", got)
	}
}
