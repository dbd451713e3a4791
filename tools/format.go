package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/lexandro/codesync/index"
)

// FormatSearchResults formats content search results as human-readable text.
// Groups matches by file with line numbers and optional context.
func FormatSearchResults(results []index.ContentSearchResult, totalMatches int) string {
	if len(results) == 0 {
		return "No matches found."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d matches in %d files:\n\n", totalMatches, len(results)))

	for i, result := range results {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(fmt.Sprintf("── %s ──\n", result.RelativePath))

		for _, match := range result.Matches {
			for _, ctxLine := range match.ContextBefore {
				builder.WriteString(fmt.Sprintf("  %s\n", ctxLine))
			}
			builder.WriteString(fmt.Sprintf("  %d: %s\n", match.LineNumber, match.LineText))
			for _, ctxLine := range match.ContextAfter {
				builder.WriteString(fmt.Sprintf("  %s\n", ctxLine))
			}
		}
	}

	return builder.String()
}

// FormatFileResults formats matched index entries as human-readable text.
func FormatFileResults(entries []index.Entry, nameOnly bool) string {
	if len(entries) == 0 {
		return "No files matched."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d files:\n\n", len(entries)))

	for _, entry := range entries {
		if nameOnly {
			builder.WriteString(entry.RelativePath)
			builder.WriteString("\n")
			continue
		}
		builder.WriteString(fmt.Sprintf("  %s  (%s, modified %s)\n",
			entry.RelativePath,
			formatFileSize(entry.SizeBytes),
			entry.ModTime.Format(time.DateTime),
		))
	}

	return builder.String()
}

// FormatFileContent formats a file's content with line numbers. offset is the
// 1-based first line to show (0 means the start) and limit caps the number of
// lines shown (0 means no limit).
func FormatFileContent(filePath string, content string, offset, limit int) string {
	lines := strings.Split(content, "\n")
	lineCount := len(lines)

	if offset <= 0 {
		offset = 1
	}
	if offset > lineCount {
		return fmt.Sprintf("Offset exceeds file length: %s has %d lines", filePath, lineCount)
	}
	end := lineCount
	if limit > 0 {
		end = min(lineCount, offset-1+limit)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("── %s (%d lines) ──\n", filePath, lineCount))

	width := len(fmt.Sprintf("%d", end))
	for i := offset - 1; i < end; i++ {
		builder.WriteString(fmt.Sprintf("%*d: %s\n", width, i+1, lines[i]))
	}

	return builder.String()
}

// formatFileSize converts bytes to a human-readable string.
func formatFileSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	totalMinutes := totalSeconds / 60
	remainderSeconds := totalSeconds % 60
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm%ds", totalMinutes, remainderSeconds)
	}
	hours := totalMinutes / 60
	remainderMinutes := totalMinutes % 60
	return fmt.Sprintf("%dh%dm", hours, remainderMinutes)
}
