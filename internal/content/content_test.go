package content

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/stagehand/internal/fileutil"
	"github.com/harrison/stagehand/internal/models"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestFormatTextAndBinary(t *testing.T) {
	root := t.TempDir()
	text := writeFile(t, root, "hello.txt", []byte("abc"))
	bin := writeFile(t, root, "blob.dat", append([]byte("MZ"), 0, 1, 2))

	f := NewFormatter(fileutil.NewOSFS(), nil, root, 2)
	out := f.Format(context.Background(), []models.StagedFile{
		models.NewStagedFile(text),
		models.NewStagedFile(bin),
	})

	assert.Equal(t, "File: hello.txt\n```txt\nabc\n```", out)
	assert.Equal(t, 2, strings.Count(out, "```"), "exactly one fenced block")
}

func TestFormatFlaggedBinaryIsNotRead(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "image.png")
	file := models.NewStagedFile(missing)
	yes := true
	file.IsBinary = &yes

	f := NewFormatter(fileutil.NewOSFS(), nil, root, 2)
	out := f.Format(context.Background(), []models.StagedFile{file})

	assert.Equal(t, "[Skipped binary file: image.png]", out)
}

func TestFormatReadErrorIsIsolated(t *testing.T) {
	root := t.TempDir()
	good := writeFile(t, root, "src/main.go", []byte("package main"))

	f := NewFormatter(fileutil.NewOSFS(), nil, root, 2)
	out := f.Format(context.Background(), []models.StagedFile{
		models.NewStagedFile(filepath.Join(root, "gone.go")),
		models.NewStagedFile(good),
	})

	assert.Equal(t,
		"[Error reading file: gone.go]\nFile: src/main.go\n```go\npackage main\n```",
		out)
}

func TestFormatKeepsInputOrder(t *testing.T) {
	root := t.TempDir()
	var files []models.StagedFile
	for _, name := range []string{"c.md", "a.md", "b.md", "d.md"} {
		files = append(files, models.NewStagedFile(writeFile(t, root, name, []byte(name))))
	}

	out := NewFormatter(fileutil.NewOSFS(), nil, root, 3).Format(context.Background(), files)

	assert.Less(t, strings.Index(out, "File: c.md"), strings.Index(out, "File: a.md"))
	assert.Less(t, strings.Index(out, "File: a.md"), strings.Index(out, "File: b.md"))
	assert.Less(t, strings.Index(out, "File: b.md"), strings.Index(out, "File: d.md"))
}

func TestFormatOutsideWorkspaceUsesAbsolutePath(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	path := writeFile(t, other, "notes", []byte("x"))

	out := NewFormatter(fileutil.NewOSFS(), nil, root, 1).Format(context.Background(), []models.StagedFile{
		models.NewStagedFile("file://" + filepath.ToSlash(path)),
	})

	assert.Equal(t, "File: "+path+"\n```\nx\n```", out)
}

func TestFormatInvalidUTF8(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "latin1.txt", []byte{'c', 'a', 'f', 0xe9})

	out := NewFormatter(fileutil.NewOSFS(), nil, root, 1).Format(context.Background(), []models.StagedFile{
		models.NewStagedFile(path),
	})
	assert.Contains(t, out, "caf�")
}

func TestFormatCancelled(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "a.txt", []byte("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewFormatter(fileutil.NewOSFS(), nil, root, 1).Format(ctx, []models.StagedFile{models.NewStagedFile(path)})
	assert.Empty(t, out)
}

func TestIsBinaryContent(t *testing.T) {
	late := append(make([]byte, BinarySniffBytes), 0)
	for i := 0; i < BinarySniffBytes; i++ {
		late[i] = 'a'
	}

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, false},
		{"text", []byte("plain text\n"), false},
		{"nul at start", []byte{0, 'a'}, true},
		{"nul past sniff window", late, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBinaryContent(tt.data))
		})
	}
}

func TestMeasure(t *testing.T) {
	assert.Equal(t, models.FileStats{TokenCount: 0, CharCount: 0}, Measure(""))

	got := Measure("a b c d")
	wordEstimate := int(math.Ceil(4 * TokenMultiplier))
	charEstimate := int(math.Ceil(7.0 / 4))
	assert.Equal(t, 7, got.CharCount)
	assert.Equal(t, max(wordEstimate, charEstimate), got.TokenCount)
	assert.GreaterOrEqual(t, got.TokenCount, wordEstimate)
	assert.GreaterOrEqual(t, got.TokenCount, charEstimate)
}

func TestMeasureDenseText(t *testing.T) {
	minified := strings.Repeat("x", 400)
	got := Measure(minified)
	assert.Equal(t, 100, got.TokenCount, "char estimate wins for text without whitespace")
}

func TestMeasureStrategiesAgree(t *testing.T) {
	text := strings.Repeat("func main() {\n\treturn nil\n}\n", 5000)
	require.Greater(t, len(text), RegexpWordCountLimit)

	regexpWords := len(wordPattern.FindAllStringIndex(text, -1))
	assert.Equal(t, regexpWords, countWords(text))
}

func TestMeasureStrategiesAgreeOnUnicodeSpace(t *testing.T) {
	separators := []string{" ", "\t", "\v", "\f", "\u0085", "\u00a0", "\u1680", "\u2003", "\u2028", "\u2029", "\u202f", "\u3000"}
	for _, sep := range separators {
		text := "alpha" + sep + "beta" + sep + sep + "gamma"
		assert.Equal(t, 3, len(wordPattern.FindAllStringIndex(text, -1)), "regexp with %q", sep)
		assert.Equal(t, 3, countWords(text), "scan with %q", sep)
	}

	// Straddling the regexp limit must not change the per-word count
	unit := "word\u00a0word\vword\u2028"
	small := strings.Repeat(unit, RegexpWordCountLimit/len(unit)-1)
	large := strings.Repeat(unit, RegexpWordCountLimit/len(unit)+1)
	require.LessOrEqual(t, len(small), RegexpWordCountLimit)
	require.Greater(t, len(large), RegexpWordCountLimit)
	assert.Equal(t, len(wordPattern.FindAllStringIndex(large, -1)), countWords(large))
	assert.Equal(t, countWords(small), len(wordPattern.FindAllStringIndex(small, -1)))
}

func TestMeasureHugeTextUsesCharEstimate(t *testing.T) {
	text := strings.Repeat("a ", DirectScanLimit/2+1)
	got := Measure(text)
	assert.Equal(t, int(math.Ceil(float64(len(text))/CharsPerToken)), got.TokenCount)
}

func TestFormatTokenCount(t *testing.T) {
	assert.Equal(t, "~0 tokens", FormatTokenCount(0))
	assert.Equal(t, "~999 tokens", FormatTokenCount(999))
	assert.Equal(t, "~1,234,567 tokens", FormatTokenCount(1234567))
}

// sinkRecorder collects analysis results
type sinkRecorder struct {
	mu     sync.Mutex
	stats  map[string]models.FileStats
	binary map[string]bool
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{stats: map[string]models.FileStats{}, binary: map[string]bool{}}
}

func (s *sinkRecorder) UpdateFileStats(id string, stats models.FileStats, isBinary bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[id] = stats
	s.binary[id] = isBinary
}

func TestEnrichStats(t *testing.T) {
	root := t.TempDir()
	text := writeFile(t, root, "a.txt", []byte("one two three"))
	bin := writeFile(t, root, "b.bin", []byte{0, 1, 2})
	missing := filepath.Join(root, "missing.txt")

	sink := newSinkRecorder()
	n := NewAnalyzer(fileutil.NewOSFS(), nil, 2).EnrichStats(context.Background(), []models.StagedFile{
		models.NewStagedFile(text),
		models.NewStagedFile(bin),
		models.NewStagedFile(missing),
	}, sink)

	assert.Equal(t, 2, n)
	assert.Equal(t, Measure("one two three"), sink.stats[text])
	assert.False(t, sink.binary[text])
	assert.True(t, sink.binary[bin])
	assert.NotContains(t, sink.stats, missing)
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAnalyzer(fileutil.NewOSFS(), nil, 1).Analyze(ctx, "/nowhere")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	yes := true
	files := []models.StagedFile{
		{ID: "a", IsPinned: true, Stats: &models.FileStats{TokenCount: 10, CharCount: 40}},
		{ID: "b", Stats: &models.FileStats{TokenCount: 5, CharCount: 20}},
		{ID: "c"},
		{ID: "d", IsBinary: &yes},
	}

	assert.Equal(t, Summary{Files: 4, Pinned: 1, Pending: 1, Binary: 1, Tokens: 15, Chars: 60}, Summarize(files))
}
