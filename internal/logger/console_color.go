package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harrison/stagehand/internal/models"
)

// colorScheme defines consistent colors for different metric types.
// Green: pinned files
// Yellow: pending analysis / binary files
// Cyan: labels
type colorScheme struct {
	success *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for metrics.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// metrics summarizes a track for a single log line
type metrics struct {
	files   int
	pinned  int
	tokens  int
	pending int
	binary  int
}

func trackMetrics(track models.ContextTrack) metrics {
	m := metrics{files: len(track.Files)}
	for _, f := range track.Files {
		if f.IsPinned {
			m.pinned++
		}
		if f.Binary() {
			m.binary++
		}
		if f.Stats == nil {
			m.pending++
			continue
		}
		m.tokens += f.Stats.TokenCount
	}
	return m
}

// formatColorizedMetric formats a single metric with colorized label and value.
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), scheme.value.Sprintf("%v", value))
}

// formatColorizedTrackMetrics formats track metrics with color coding.
// Zero-valued optional metrics (pinned, pending, binary) are omitted.
func formatColorizedTrackMetrics(m metrics) string {
	scheme := newColorScheme()
	parts := []string{
		formatColorizedMetric("files", m.files, scheme),
	}
	if m.pinned > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.success.Sprint("pinned"), scheme.value.Sprintf("%d", m.pinned)))
	}
	parts = append(parts, formatColorizedMetric("tokens", m.tokens, scheme))
	if m.pending > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.warn.Sprint("pending"), scheme.warn.Sprintf("%d", m.pending)))
	}
	if m.binary > 0 {
		parts = append(parts, fmt.Sprintf("%s: %s", scheme.warn.Sprint("binary"), scheme.warn.Sprintf("%d", m.binary)))
	}
	return strings.Join(parts, ", ")
}

// formatPlainTrackMetrics is the uncolored variant of formatColorizedTrackMetrics
func formatPlainTrackMetrics(m metrics) string {
	parts := []string{fmt.Sprintf("files: %d", m.files)}
	if m.pinned > 0 {
		parts = append(parts, fmt.Sprintf("pinned: %d", m.pinned))
	}
	parts = append(parts, fmt.Sprintf("tokens: %d", m.tokens))
	if m.pending > 0 {
		parts = append(parts, fmt.Sprintf("pending: %d", m.pending))
	}
	if m.binary > 0 {
		parts = append(parts, fmt.Sprintf("binary: %d", m.binary))
	}
	return strings.Join(parts, ", ")
}
