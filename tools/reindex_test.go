package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lexandro/codesync/index"
)

func Test_ReindexHandler_Success(t *testing.T) {
	h := &ReindexHandler{
		DoReindex: func(ctx context.Context) (index.ScanResult, error) {
			return index.ScanResult{
				Entries:   make([]index.Entry, 42),
				TotalSize: 1024 * 1024,
				Duration:  1500 * time.Millisecond,
			}, nil
		},
		Logger: testLogger(),
	}

	result, _, err := h.Handle(context.Background(), nil, ReindexArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success, got error result")
	}

	text := resultText(t, result)
	for _, want := range []string{"Reindex complete", "42 files", "1.0 MB", "1.5s"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func Test_ReindexHandler_Error(t *testing.T) {
	h := &ReindexHandler{
		DoReindex: func(ctx context.Context) (index.ScanResult, error) {
			return index.ScanResult{}, fmt.Errorf("disk full")
		},
		Logger: testLogger(),
	}

	result, _, err := h.Handle(context.Background(), nil, ReindexArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError=true for failed reindex")
	}
	if text := resultText(t, result); !strings.Contains(text, "disk full") {
		t.Errorf("expected error message 'disk full', got: %s", text)
	}
}
