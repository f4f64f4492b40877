package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/stagehand/internal/content"
	"github.com/harrison/stagehand/internal/storage"
)

var pageTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
header { border-bottom: 1px solid #ccc; margin-bottom: 1em; }
pre { background: #f6f8fa; padding: 1em; overflow-x: auto; }
.stats span { margin-right: 1.5em; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<p class="stats"><span>{{.Tokens}}</span><span>{{.Files}}</span><span>{{.Chars}}</span>{{if .Pending}}<span>{{.Pending}}</span>{{end}}</p>
</header>
{{.Body}}
</body>
</html>
`))

type pageData struct {
	Title   string
	Tokens  string
	Files   string
	Chars   string
	Pending string
	Body    template.HTML
}

// HTMLPanel renders payloads to an HTML file through goldmark
type HTMLPanel struct {
	path     string
	markdown goldmark.Markdown
	renders  int
}

// NewHTMLPanel creates a panel that writes to path
func NewHTMLPanel(path string) *HTMLPanel {
	return &HTMLPanel{path: path, markdown: goldmark.New()}
}

// Path returns the output file
func (h *HTMLPanel) Path() string {
	return h.path
}

// Renders returns how many times the panel was updated
func (h *HTMLPanel) Renders() int {
	return h.renders
}

// Update re-renders the page and atomically replaces the output file
func (h *HTMLPanel) Update(p Payload) error {
	var buf bytes.Buffer
	if err := h.Render(&buf, p); err != nil {
		return err
	}
	if err := storage.AtomicWrite(h.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	h.renders++
	return nil
}

// Render writes the HTML page for p to w
func (h *HTMLPanel) Render(w io.Writer, p Payload) error {
	var body bytes.Buffer
	if err := h.markdown.Convert([]byte(p.Text), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}

	data := pageData{
		Title:  p.Title,
		Tokens: content.FormatTokenCount(p.Summary.Tokens),
		Files:  fmt.Sprintf("%d files", p.Summary.Files),
		Chars:  humanize.Comma(int64(p.Summary.Chars)) + " chars",
		Body:   template.HTML(body.String()),
	}
	if p.Summary.Pending > 0 {
		data.Pending = fmt.Sprintf("%d pending", p.Summary.Pending)
	}

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// Close is a no-op; the rendered file stays on disk
func (h *HTMLPanel) Close() error {
	return nil
}

// CountBlocks returns the number of fenced code blocks in a formatted payload,
// which is the number of text files it contains
func CountBlocks(payload string) int {
	source := []byte(payload)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	count := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindFencedCodeBlock {
			count++
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return count
}

// Placeholders returns the skip and error marker lines in a formatted payload
func Placeholders(payload string) []string {
	var out []string
	for _, line := range strings.Split(payload, "\n") {
		if strings.HasPrefix(line, "[Skipped binary file: ") || strings.HasPrefix(line, "[Error reading file: ") {
			out = append(out, line)
		}
	}
	return out
}
