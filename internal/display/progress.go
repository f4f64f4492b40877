package display

import (
	"fmt"
	"io"
	"path/filepath"
)

// ProgressIndicator reports folder-by-folder discovery progress
type ProgressIndicator struct {
	writer       io.Writer
	totalFolders int
	current      int
	files        int
}

// NewProgressIndicator creates a new progress indicator
func NewProgressIndicator(w io.Writer, total int) *ProgressIndicator {
	return &ProgressIndicator{
		writer:       w,
		totalFolders: total,
	}
}

// Start displays the header message
func (p *ProgressIndicator) Start() {
	fmt.Fprintf(p.writer, "Scanning %d folders:\n", p.totalFolders)
}

// Step displays progress for a completed folder: [N/Total] folder (N files)
func (p *ProgressIndicator) Step(folder string, found int) {
	p.current++
	p.files += found
	fmt.Fprintf(p.writer, "\x1b[36m  [%d/%d] %s (%d files)\x1b[0m\n", p.current, p.totalFolders, filepath.Base(folder), found)
}

// Complete displays success message with green checkmark
func (p *ProgressIndicator) Complete(added int) {
	fmt.Fprintf(p.writer, "\x1b[32m✓\x1b[0m Found %d files, staged %d new\n", p.files, added)
}
