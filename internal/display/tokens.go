package display

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// DefaultLargeFileThreshold is the token count above which a file is flagged
const DefaultLargeFileThreshold = 5000

// ShortTokens renders a token count compactly: "~950" below 1000, "~X.Xk" above
func ShortTokens(n int) string {
	if n < 1000 {
		return fmt.Sprintf("~%d", n)
	}
	return fmt.Sprintf("~%.1fk", float64(n)/1000)
}

// LongTokens renders a token count with thousands separators
func LongTokens(n int) string {
	return "~" + humanize.Comma(int64(n)) + " tokens"
}

// ColorEnabled reports whether w is a terminal that should receive color
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
