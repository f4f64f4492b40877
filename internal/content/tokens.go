package content

import (
	"math"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/harrison/stagehand/internal/models"
)

// TokenMultiplier converts a word count into an estimated token count.
// Source code has more punctuation than prose, so it tokenizes into more
// tokens than words.
var TokenMultiplier = 1.3

// CharsPerToken is the divisor for the character based estimate
const CharsPerToken = 4

// Size thresholds (bytes) that pick the word counting strategy
const (
	RegexpWordCountLimit = 100 * 1024
	DirectScanLimit      = 10 * 1024 * 1024
)

// wordPattern matches runs of non-space runes. The class is exactly the set
// unicode.IsSpace accepts, so both counting strategies agree.
var wordPattern = regexp.MustCompile(`[^\t\n\x{0B}\f\r\x{85}\p{Z}]+`)

// Measure estimates the token and character counts of text.
// The result is the larger of words*TokenMultiplier and chars/CharsPerToken,
// both rounded up. Above DirectScanLimit only the character estimate is used.
func Measure(text string) models.FileStats {
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return models.FileStats{}
	}

	charEstimate := int(math.Ceil(float64(chars) / CharsPerToken))

	var words int
	switch {
	case len(text) <= RegexpWordCountLimit:
		words = len(wordPattern.FindAllStringIndex(text, -1))
	case len(text) <= DirectScanLimit:
		words = countWords(text)
	default:
		return models.FileStats{TokenCount: charEstimate, CharCount: chars}
	}

	wordEstimate := int(math.Ceil(float64(words) * TokenMultiplier))
	return models.FileStats{
		TokenCount: max(wordEstimate, charEstimate),
		CharCount:  chars,
	}
}

// countWords counts whitespace-delimited runs without a regexp
func countWords(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	return words
}

// FormatTokenCount renders n as "~N tokens" with thousands separators
func FormatTokenCount(n int) string {
	return "~" + humanize.Comma(int64(n)) + " tokens"
}
