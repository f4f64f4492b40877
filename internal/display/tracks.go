package display

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/harrison/stagehand/internal/content"
	"github.com/harrison/stagehand/internal/models"
)

// TrackView renders tracks and their files for the terminal
type TrackView struct {
	Writer    io.Writer
	Threshold int                    // Large-file token threshold
	PathFor   func(id string) string // Display path for a file id; label when nil
	Color     bool
}

// NewTrackView creates a view writing to w with color detected from w
func NewTrackView(w io.Writer, threshold int) *TrackView {
	if threshold <= 0 {
		threshold = DefaultLargeFileThreshold
	}
	return &TrackView{Writer: w, Threshold: threshold, Color: ColorEnabled(w)}
}

func (v *TrackView) paint(attr color.Attribute, s string) string {
	if !v.Color {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

// Tracks lists every track, marking the active one
func (v *TrackView) Tracks(tracks []models.ContextTrack, activeID string) {
	for _, t := range tracks {
		marker := "  "
		name := t.Name
		if t.ID == activeID {
			marker = v.paint(color.FgGreen, "* ")
			name = v.paint(color.Bold, t.Name)
		}
		sum := content.Summarize(t.Files)
		fmt.Fprintf(v.Writer, "%s%s (%d files, %s)  %s\n", marker, name, sum.Files, ShortTokens(sum.Tokens), v.paint(color.Faint, t.ID))
	}
}

// Files lists the files of one track with pin markers and token counts, and
// returns the display paths of files above the large-file threshold
func (v *TrackView) Files(t models.ContextTrack) []string {
	sum := content.Summarize(t.Files)
	header := fmt.Sprintf("Track %s: %d files, %s", t.Name, sum.Files, LongTokens(sum.Tokens))
	if sum.Pending > 0 {
		header += fmt.Sprintf(" (%d pending)", sum.Pending)
	}
	fmt.Fprintln(v.Writer, v.paint(color.FgCyan, header))

	if len(t.Files) == 0 {
		fmt.Fprintln(v.Writer, "  (no staged files)")
		return nil
	}

	var large []string
	for _, f := range t.Files {
		shown := f.Label
		if v.PathFor != nil {
			shown = v.PathFor(f.ID)
		}

		pin := "  "
		if f.IsPinned {
			pin = v.paint(color.FgGreen, "📌")
		}

		var size string
		switch {
		case f.Binary():
			size = v.paint(color.FgYellow, "binary")
		case f.Stats == nil:
			size = v.paint(color.Faint, "pending")
		case f.Stats.TokenCount > v.Threshold:
			size = v.paint(color.FgRed, ShortTokens(f.Stats.TokenCount)+" ⚠")
			large = append(large, shown)
		default:
			size = ShortTokens(f.Stats.TokenCount)
		}

		fmt.Fprintf(v.Writer, "%s %s  %s\n", pin, shown, size)
	}
	return large
}

// Folders prints one folder per line
func (v *TrackView) Folders(folders []string) {
	for _, f := range folders {
		fmt.Fprintln(v.Writer, f)
	}
}
