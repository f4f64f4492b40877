package exclude

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileEmptyReturnsDefaults(t *testing.T) {
	got := Split(Compile("", nil))

	want := append([]string(nil), DefaultPatterns...)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestCompileIgnoreFile(t *testing.T) {
	got := Split(Compile("node_modules/\n!keep.txt\n#comment", nil))

	count := 0
	for _, p := range got {
		if p == "**/node_modules" {
			count++
		}
		assert.NotContains(t, p, "keep.txt")
		assert.NotContains(t, p, "comment")
	}
	assert.Equal(t, 1, count)
	assert.Len(t, got, len(DefaultPatterns))
}

func TestCompileUserPatterns(t *testing.T) {
	got := Split(Compile("/dist/\n  build  \n\n", []string{"*.log", "**/tmp", "dist"}))

	assert.Contains(t, got, "**/dist")
	assert.Contains(t, got, "**/build")
	assert.Contains(t, got, "**/*.log")
	assert.Contains(t, got, "**/tmp")
	assert.Len(t, got, len(DefaultPatterns)+4)
}

func TestCompileDeterministic(t *testing.T) {
	a := Compile("b\na\nc", []string{"z", "y"})
	b := Compile("c\nb\na", []string{"y", "z"})
	assert.Equal(t, a, b)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"node_modules/", "**/node_modules"},
		{"/build", "**/build"},
		{"/out/", "**/out"},
		{"**/keep", "**/keep"},
		{"**", "**"},
		{"src/*.tmp", "**/src/*.tmp"},
		{"/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"a", "b/{c,d}", "e"}, Split("{a,b/{c,d},e}"))
	assert.Equal(t, []string{"**/x"}, Split("**/x"))
	assert.Equal(t, []string{"{a,b}/{c,d}"}, Split("{a,b}/{c,d}"))
	assert.Nil(t, Split(""))
}

func TestCompileWorkspace(t *testing.T) {
	root := t.TempDir()

	glob, err := CompileWorkspace(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Compile("", nil), glob)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("coverage/\n"), 0644))
	glob, err = CompileWorkspace(root, []string{"*.bak"}, []string{"vendor"})
	require.NoError(t, err)

	patterns := Split(glob)
	assert.Contains(t, patterns, "**/coverage")
	assert.Contains(t, patterns, "**/*.bak")
	assert.Contains(t, patterns, "**/vendor")
}

func TestMatcher(t *testing.T) {
	m := NewMatcher(Compile("sub/**\n*.log", nil))

	assert.True(t, m.Match("node_modules"))
	assert.True(t, m.Match("pkg/node_modules"))
	assert.True(t, m.Match("a/b/debug.log"))
	assert.True(t, m.Match("sub/file.txt"))
	assert.True(t, m.Match("deep/sub/file.txt"))
	assert.False(t, m.Match("src/main.go"))
	assert.False(t, m.Match("."))

	assert.True(t, m.PruneDir("sub"))
	assert.True(t, m.PruneDir("x/.git"))
	assert.False(t, m.PruneDir("src"))
}

func TestMatcherNil(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything"))
	assert.False(t, m.PruneDir("anything"))
}
