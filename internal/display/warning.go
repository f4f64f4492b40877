package display

import (
	"fmt"
	"io"
	"strings"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display shows a formatted warning in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("\x1b[33m")
	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		b.WriteString("    ")
		if len(w.Files) == 1 {
			b.WriteString("Affected file:\n")
		} else {
			b.WriteString("Affected files:\n")
		}

		for i, file := range w.Files {
			b.WriteString("      ")
			b.WriteString(fmt.Sprintf("%d. %s", i+1, file))
			b.WriteString("\n")
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	b.WriteString("\x1b[0m")

	fmt.Fprint(out, b.String())
}

// WarnLargeFiles creates a warning for staged files above the token threshold
func WarnLargeFiles(files []string, threshold int) Warning {
	return Warning{
		Title:      "Large files staged",
		Message:    fmt.Sprintf("These files exceed %s each.", ShortTokens(threshold)),
		Files:      files,
		Suggestion: "Remove or unpin them if the payload is too big for your model.",
	}
}

// WarnRejected creates a warning for an operation that left the state untouched
func WarnRejected(title string, err error, suggestion string) Warning {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Warning{Title: title, Message: msg, Suggestion: suggestion}
}
