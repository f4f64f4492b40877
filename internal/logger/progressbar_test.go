package logger

import (
	"strings"
	"testing"
)

// TestProgressBarRender verifies correct ASCII bar rendering
func TestProgressBarRender(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		expected string
	}{
		{"empty progress", 0, 10, 10, "[          ] 0/10 (0%)"},
		{"half progress", 5, 10, 10, "[=====     ] 5/10 (50%)"},
		{"full progress", 10, 10, 10, "[==========] 10/10 (100%)"},
		{"zero total", 0, 0, 4, "[    ] 0/0 (0%)"},
		{"overflow clamps", 12, 10, 10, "[==========] 12/10 (100%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(tt.total, tt.width, false)
			for i := 0; i < tt.current; i++ {
				pb.Increment()
			}
			if got := pb.Render(); got != tt.expected {
				t.Errorf("Render() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestProgressBarPrefixAndColor(t *testing.T) {
	pb := NewProgressBar(2, 0, true)
	pb.SetPrefix("folders ")
	pb.Increment()

	got := pb.Render()
	if !strings.HasPrefix(got, "\033[36mfolders [") {
		t.Errorf("expected cyan prefixed bar, got %q", got)
	}

	pb.Increment()
	if !strings.HasPrefix(pb.Render(), "\033[32m") {
		t.Errorf("expected green bar at completion, got %q", pb.Render())
	}
	if pb.Current() != 2 {
		t.Errorf("Current() = %d, want 2", pb.Current())
	}
}
