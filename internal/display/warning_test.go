package display

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDisplayWarning_TitleOnly(t *testing.T) {
	var buf bytes.Buffer
	Warning{Title: "Track not found"}.Display(&buf)

	output := buf.String()
	if !strings.HasPrefix(output, "\x1b[33m") {
		t.Error("Expected output to start with yellow ANSI color code")
	}
	if !strings.Contains(output, "⚠️  Warning: Track not found") {
		t.Errorf("Expected title in output, got: %s", output)
	}
	if !strings.HasSuffix(output, "\x1b[0m") {
		t.Error("Expected output to end with ANSI reset code")
	}
}

func TestDisplayWarning_WithFiles(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		wantText string
	}{
		{
			name:     "single file",
			files:    []string{"big.json"},
			wantText: "Affected file:",
		},
		{
			name:     "multiple files",
			files:    []string{"big.json", "dump.sql", "bundle.js"},
			wantText: "Affected files:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Warning{Title: "Large files staged", Files: tt.files}.Display(&buf)

			output := buf.String()
			if !strings.Contains(output, tt.wantText) {
				t.Errorf("Expected %q in output, got: %s", tt.wantText, output)
			}
			for i, file := range tt.files {
				expected := fmt.Sprintf("      %d. %s", i+1, file)
				if !strings.Contains(output, expected) {
					t.Errorf("Expected file entry %q in output, got: %s", expected, output)
				}
			}
		})
	}
}

func TestDisplayWarning_Complete(t *testing.T) {
	var buf bytes.Buffer
	Warning{
		Title:      "Cannot delete track",
		Message:    "it is the last remaining track",
		Files:      []string{"Default"},
		Suggestion: "Create another track first",
	}.Display(&buf)

	output := buf.String()
	components := []string{
		"Cannot delete track",
		"    it is the last remaining track",
		"    Affected file:",
		"      1. Default",
		"    Suggestion:",
		"    Create another track first",
	}
	for _, component := range components {
		if !strings.Contains(output, component) {
			t.Errorf("Expected component %q in output, got: %s", component, output)
		}
	}
}

func TestWarnLargeFiles(t *testing.T) {
	w := WarnLargeFiles([]string{"a.json"}, 5000)

	if w.Title != "Large files staged" {
		t.Errorf("Title = %q", w.Title)
	}
	if !strings.Contains(w.Message, "~5.0k") {
		t.Errorf("Message = %q, want threshold in short form", w.Message)
	}
	if len(w.Files) != 1 {
		t.Errorf("Files = %v", w.Files)
	}
}

func TestWarnRejected(t *testing.T) {
	base := errors.New("track not found")
	w := WarnRejected("Cannot switch track", fmt.Errorf("switch: %w", base), "")
	if w.Message != "switch: track not found" {
		t.Errorf("Message = %q", w.Message)
	}

	w = WarnRejected("Plain", base, "try again")
	if w.Message != "track not found" || w.Suggestion != "try again" {
		t.Errorf("unexpected warning %+v", w)
	}

	if w := WarnRejected("Nil", nil, ""); w.Message != "" {
		t.Errorf("Message = %q, want empty", w.Message)
	}
}
