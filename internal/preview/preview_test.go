package preview

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/stagehand/internal/content"
)

type fakePanel struct {
	updates []Payload
	closed  bool
}

func (f *fakePanel) Update(p Payload) error {
	f.updates = append(f.updates, p)
	return nil
}

func (f *fakePanel) Close() error {
	f.closed = true
	return nil
}

func TestRegistryCreatesOnce(t *testing.T) {
	r := NewRegistry()
	var made atomic.Int32
	factory := func() (Panel, error) {
		made.Add(1)
		return &fakePanel{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := r.GetOrCreate(PanelKey, factory)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), made.Load())
}

func TestRegistryShowAndDispose(t *testing.T) {
	r := NewRegistry()
	panel := &fakePanel{}
	factory := func() (Panel, error) { return panel, nil }

	require.NoError(t, r.Show(PanelKey, factory, Payload{Title: "one"}))
	require.NoError(t, r.Show(PanelKey, factory, Payload{Title: "two"}))
	assert.Len(t, panel.updates, 2)

	require.NoError(t, r.Dispose(PanelKey))
	assert.True(t, panel.closed)
	_, ok := r.Get(PanelKey)
	assert.False(t, ok)

	assert.NoError(t, r.Dispose(PanelKey), "disposing twice is fine")
}

func TestRegistryFactoryError(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.GetOrCreate(PanelKey, func() (Panel, error) { return nil, errors.New("no display") })
	assert.Error(t, err)

	_, ok := r.Get(PanelKey)
	assert.False(t, ok)
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := &fakePanel{}, &fakePanel{}
	_, _, err := r.GetOrCreate("a", func() (Panel, error) { return a, nil })
	require.NoError(t, err)
	_, _, err = r.GetOrCreate("b", func() (Panel, error) { return b, nil })
	require.NoError(t, err)

	require.NoError(t, r.CloseAll())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

const samplePayload = "File: main.go\n```go\npackage main\n```\n[Skipped binary file: logo.png]\nFile: README.md\n```md\n<script>alert(1)</script>\n```"

func TestHTMLPanelRender(t *testing.T) {
	panel := NewHTMLPanel("unused.html")
	var buf bytes.Buffer
	err := panel.Render(&buf, Payload{
		Title:   "Default",
		Text:    samplePayload,
		Summary: content.Summary{Files: 3, Tokens: 1234, Chars: 5678, Pending: 1},
	})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<title>Default</title>")
	assert.Contains(t, html, "~1,234 tokens")
	assert.Contains(t, html, "5,678 chars")
	assert.Contains(t, html, "1 pending")
	assert.Contains(t, html, `<code class="language-go">package main`)
	assert.Contains(t, html, "&lt;script&gt;", "file contents are escaped")
}

func TestHTMLPanelUpdateWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preview.html")
	panel := NewHTMLPanel(path)

	require.NoError(t, panel.Update(Payload{Title: "T", Text: "File: a.txt\n```txt\nhi\n```"}))
	require.NoError(t, panel.Update(Payload{Title: "T", Text: "File: a.txt\n```txt\nbye\n```"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bye")
	assert.NotContains(t, string(data), ">hi")
	assert.Equal(t, 2, panel.Renders())
}

func TestCountBlocksAndPlaceholders(t *testing.T) {
	assert.Equal(t, 2, CountBlocks(samplePayload))
	assert.Equal(t, 0, CountBlocks(""))
	assert.Equal(t, []string{"[Skipped binary file: logo.png]"}, Placeholders(samplePayload))
}
